// Package httpapi serves the JSON API for deduplication, ingest, and
// operational introspection.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/thenotsodarkknight/based/internal/classify"
	"github.com/thenotsodarkknight/based/internal/dedup"
	"github.com/thenotsodarkknight/based/internal/globaltime"
	"github.com/thenotsodarkknight/based/internal/ingest"
	"github.com/thenotsodarkknight/based/internal/store"
)

const maxIngestPayloadBytes = 1 << 20

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// DedupTimeout bounds one deduplication run triggered over HTTP.
	DedupTimeout  time.Duration
	GlobalPrefix  string
	PersonaPrefix string
	CORSOrigins   []string
}

type Server struct {
	store  store.Store
	dedup  *dedup.Service
	ingest *ingest.Service
	logger zerolog.Logger
	opts   Options
}

func NewServer(st store.Store, dedupSvc *dedup.Service, ingestSvc *ingest.Service, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	dedupTimeout := opts.DedupTimeout
	if dedupTimeout <= 0 {
		dedupTimeout = 2 * time.Minute
	}
	globalPrefix := opts.GlobalPrefix
	if globalPrefix == "" {
		globalPrefix = "news/global/"
	}
	personaPrefix := opts.PersonaPrefix
	if personaPrefix == "" {
		personaPrefix = "news/personas/"
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &Server{
		store:  st,
		dedup:  dedupSvc,
		ingest: ingestSvc,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
			DedupTimeout:    dedupTimeout,
			GlobalPrefix:    globalPrefix,
			PersonaPrefix:   personaPrefix,
			CORSOrigins:     origins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := s.buildEcho()

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("api server stopped")
	return nil
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.POST("/dedup", s.handleDedup)
	api.POST("/ingest", s.handleIngest)

	return e
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	isAPI := strings.HasPrefix(c.Request().URL.Path, "/api/")
	if isAPI {
		if status >= 500 {
			_ = internalError(c, "Internal server error")
			return
		}
		_ = fail(c, status, message, nil)
		return
	}

	_ = c.String(status, message)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("store ping failed")
		return fail(c, http.StatusServiceUnavailable, "Store unreachable", nil)
	}
	return success(c, map[string]any{
		"service": "based",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	ctx := c.Request().Context()

	globalHandles, err := s.store.List(ctx, s.opts.GlobalPrefix)
	if err != nil {
		s.logger.Error().Err(err).Msg("list global namespace failed")
		return internalError(c, "Failed to load stats")
	}
	personaHandles, err := s.store.List(ctx, s.opts.PersonaPrefix)
	if err != nil {
		s.logger.Error().Err(err).Msg("list persona namespace failed")
		return internalError(c, "Failed to load stats")
	}

	return success(c, map[string]any{
		"global_items":  len(globalHandles),
		"persona_items": len(personaHandles),
	})
}

func (s *Server) handleDedup(c echo.Context) error {
	if s.dedup == nil {
		return internalError(c, "Deduplication is not configured")
	}

	dryRun, err := parseBoolParam(c.QueryParam("dry_run"), false)
	if err != nil {
		return failValidation(c, map[string]string{"dry_run": err.Error()})
	}
	threshold, err := parseThresholdParam(c.QueryParam("threshold"))
	if err != nil {
		return failValidation(c, map[string]string{"threshold": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.opts.DedupTimeout)
	defer cancel()

	report, err := s.dedup.Run(ctx, dedup.Options{DryRun: dryRun, Threshold: threshold})
	if err != nil {
		if errors.Is(err, dedup.ErrScanInProgress) {
			return failConflict(c, "A deduplication scan is already running")
		}
		s.logger.Error().Err(err).Msg("dedup run failed")
		return internalError(c, "Deduplication failed")
	}

	message := fmt.Sprintf("Removed %d duplicate news items", report.Deleted)
	if dryRun {
		message = fmt.Sprintf("Dry run found %d duplicate news items", len(report.Matches))
	}

	return success(c, map[string]any{
		"message":       message,
		"deleted_count": report.Deleted,
		"report":        report,
	})
}

func (s *Server) handleIngest(c echo.Context) error {
	if s.ingest == nil {
		return internalError(c, "Ingest is not configured")
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxIngestPayloadBytes+1))
	if err != nil {
		return failValidation(c, map[string]string{"body": "could not be read"})
	}
	if len(payload) == 0 {
		return failValidation(c, map[string]string{"body": "is required"})
	}
	if len(payload) > maxIngestPayloadBytes {
		return fail(c, http.StatusRequestEntityTooLarge, "Payload too large", nil)
	}

	result, err := s.ingest.IngestOne(c.Request().Context(), payload)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidPayload) {
			return fail(c, http.StatusBadRequest, err.Error(), nil)
		}
		if errors.Is(err, classify.ErrBudgetExhausted) {
			return fail(c, http.StatusTooManyRequests, "Classification call budget exhausted", nil)
		}
		s.logger.Error().Err(err).Msg("ingest failed")
		return internalError(c, "Ingest failed")
	}

	return successWithStatus(c, http.StatusCreated, map[string]any{
		"key":              result.Handle.Key,
		"classified":       result.Classified,
		"persona_copies":   result.PersonaCopies,
		"persona_failures": result.PersonaFailures,
	})
}

func parseBoolParam(raw string, defaultValue bool) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(trimmed)
	if err != nil {
		return false, fmt.Errorf("must be a boolean")
	}
	return value, nil
}

func parseThresholdParam(raw string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("must be a number")
	}
	if value <= 0 || value >= 1 {
		return 0, fmt.Errorf("must be between 0 and 1 exclusive")
	}
	return value, nil
}
