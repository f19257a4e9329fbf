package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenotsodarkknight/based/internal/cli"
	"github.com/thenotsodarkknight/based/internal/config"
	"github.com/thenotsodarkknight/based/internal/ingest"
	"github.com/thenotsodarkknight/based/internal/logging"
	"github.com/thenotsodarkknight/based/internal/persona"
	"github.com/thenotsodarkknight/based/internal/store"
)

func runIngest(args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 20*time.Second, "Command timeout")
	payload := fs.String("payload", `{"title":"manual ingest article","content":"Manually ingested article body.","url":"https://example.com/manual-1","source_name":"manual_cli","analysis":{"heading":"manual ingest article","summary":"Manually ingested article body.","bias":"center","bias_explanation":"Manual test payload."}}`, "Article payload JSON (pre-classified unless a classifier is configured)")
	payloadFile := fs.String("payload-file", "", "Path to payload JSON file, one article or an array of articles (overrides --payload)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
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

	payloadJSON, err := loadJSONInput(*payload, *payloadFile, "payload")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
		return 2
	}

	personas, err := persona.ParseSet(cfg.Personas)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid personas config: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	st, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("ingest command failed to open store")
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer st.Close()

	// No live classifier is wired into the CLI; payloads must arrive
	// pre-classified.
	svc := ingest.NewService(st, nil, logger, ingest.ServiceOptions{
		GlobalPrefix:   cfg.GlobalPrefix,
		PersonaPrefix:  cfg.PersonaPrefix,
		Personas:       personas,
		ClassifyBudget: cfg.ClassifyCallBudget,
	})

	if bytes.HasPrefix(bytes.TrimSpace(payloadJSON), []byte("[")) {
		return runIngestBatch(ctx, svc, logger, payloadJSON)
	}

	result, err := svc.IngestOne(ctx, payloadJSON)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidPayload) {
			fmt.Fprintf(os.Stderr, "Invalid payload: %v\n", err)
			return 2
		}
		logger.Error().Err(err).Msg("ingest failed")
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"ingest key=%s classified=%t persona_copies=%d persona_failures=%d\n",
		result.Handle.Key,
		result.Classified,
		result.PersonaCopies,
		result.PersonaFailures,
	)
	return 0
}

func runIngestBatch(ctx context.Context, svc *ingest.Service, logger zerolog.Logger, payloadJSON []byte) int {
	var raw []json.RawMessage
	if err := json.Unmarshal(payloadJSON, &raw); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid payload array: %v\n", err)
		return 2
	}
	payloads := make([][]byte, len(raw))
	for i, msg := range raw {
		payloads[i] = []byte(msg)
	}

	report, err := svc.IngestBatch(ctx, payloads)
	if err != nil {
		logger.Error().Err(err).Msg("batch ingest failed")
		fmt.Fprintf(os.Stderr, "Batch ingest failed: %v\n", err)
		return 1
	}

	fmt.Printf(
		"ingest processed=%d ingested=%d failed=%d classified=%d persona_copies=%d persona_failures=%d\n",
		report.Processed,
		report.Ingested,
		report.Failed,
		report.Classified,
		report.PersonaCopies,
		report.PersonaFailures,
	)
	if report.Failed > 0 {
		return 1
	}
	return 0
}
