package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/thenotsodarkknight/based/internal/cli"
	"github.com/thenotsodarkknight/based/internal/config"
	"github.com/thenotsodarkknight/based/internal/dedup"
	"github.com/thenotsodarkknight/based/internal/logging"
	"github.com/thenotsodarkknight/based/internal/store"
)

func runDedup(args []string) int {
	fs := flag.NewFlagSet("dedup", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	dryRun := fs.Bool("dry-run", false, "Report matches without deleting anything")
	threshold := fs.Float64("threshold", 0, "Similarity threshold override in (0,1); 0 uses the configured value")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *threshold != 0 && (*threshold <= 0 || *threshold >= 1) {
		fmt.Fprintln(os.Stderr, "--threshold must be between 0 and 1 exclusive")
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("dedup command failed to open store")
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer st.Close()

	svc := dedup.NewService(st, logger, dedup.ServiceOptions{
		GlobalPrefix:  cfg.GlobalPrefix,
		PersonaPrefix: cfg.PersonaPrefix,
		Threshold:     cfg.DedupThreshold,
	})

	report, err := svc.Run(ctx, dedup.Options{DryRun: *dryRun, Threshold: *threshold})
	if err != nil {
		logger.Error().Err(err).Msg("dedup failed")
		fmt.Fprintf(os.Stderr, "Dedup failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"dedup run_id=%s dry_run=%t loaded=%d skipped=%d comparisons=%d matches=%d deleted=%d delete_failures=%d cache_deleted=%d\n",
		report.RunID,
		report.DryRun,
		report.Loaded,
		report.SkippedObjects,
		report.Comparisons,
		len(report.Matches),
		report.Deleted,
		report.DeleteFailures,
		report.CacheDeleted,
	)
	return 0
}
