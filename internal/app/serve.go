package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thenotsodarkknight/based/internal/cli"
	"github.com/thenotsodarkknight/based/internal/config"
	"github.com/thenotsodarkknight/based/internal/dedup"
	"github.com/thenotsodarkknight/based/internal/httpapi"
	"github.com/thenotsodarkknight/based/internal/ingest"
	"github.com/thenotsodarkknight/based/internal/logging"
	"github.com/thenotsodarkknight/based/internal/persona"
	"github.com/thenotsodarkknight/based/internal/store"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
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

	personas, err := persona.ParseSet(cfg.Personas)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid personas config: %v\n", err)
		return 1
	}

	storeCtx, storeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer storeCancel()

	st, err := store.Open(storeCtx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to open store")
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer st.Close()

	if err := st.Ping(storeCtx); err != nil {
		logger.Error().Err(err).Msg("serve failed to reach store")
		fmt.Fprintf(os.Stderr, "Failed to reach store: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	dedupSvc := dedup.NewService(st, logger, dedup.ServiceOptions{
		GlobalPrefix:  cfg.GlobalPrefix,
		PersonaPrefix: cfg.PersonaPrefix,
		Threshold:     cfg.DedupThreshold,
	})
	ingestSvc := ingest.NewService(st, nil, logger, ingest.ServiceOptions{
		GlobalPrefix:   cfg.GlobalPrefix,
		PersonaPrefix:  cfg.PersonaPrefix,
		Personas:       personas,
		ClassifyBudget: cfg.ClassifyCallBudget,
	})

	srv := httpapi.NewServer(st, dedupSvc, ingestSvc, logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		DedupTimeout:    cfg.DedupTimeout,
		GlobalPrefix:    cfg.GlobalPrefix,
		PersonaPrefix:   cfg.PersonaPrefix,
		CORSOrigins:     cfg.CORSAllowedOriginsList(),
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
