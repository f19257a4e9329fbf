// Package dedup implements the corpus deduplication scan: load every item in
// the global namespace, compare headings pairwise, delete the older member of
// each pair scoring above the similarity threshold, and purge the loser's
// persona-cache copies.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thenotsodarkknight/based/internal/persona"
	"github.com/thenotsodarkknight/based/internal/similarity"
	"github.com/thenotsodarkknight/based/internal/store"
)

const (
	defaultThreshold     = 0.8
	defaultGlobalPrefix  = "news/global/"
	defaultPersonaPrefix = "news/personas/"
)

// ErrScanInProgress is returned when a scan is triggered while another one is
// still running on the same service.
var ErrScanInProgress = errors.New("dedup scan already in progress")

// Options tune one scan.
type Options struct {
	// Threshold overrides the service similarity cutoff for this run. The
	// cutoff is strict: a score equal to it is not a duplicate. Zero keeps
	// the service default.
	Threshold float64
	// DryRun collects matches without deleting anything.
	DryRun bool
}

// Match records one resolved duplicate pair.
type Match struct {
	SurvivorKey string  `json:"survivor_key"`
	LoserKey    string  `json:"loser_key"`
	Score       float64 `json:"score"`
}

// Report summarizes one scan.
type Report struct {
	RunID          string  `json:"run_id"`
	DryRun         bool    `json:"dry_run"`
	Loaded         int     `json:"loaded"`
	SkippedObjects int     `json:"skipped_objects"`
	Comparisons    int     `json:"comparisons"`
	Matches        []Match `json:"matches,omitempty"`
	Deleted        int     `json:"deleted"`
	DeleteFailures int     `json:"delete_failures"`
	CacheDeleted   int     `json:"cache_deleted"`
	DurationMS     int64   `json:"duration_ms"`
}

// ServiceOptions configure a dedup service.
type ServiceOptions struct {
	GlobalPrefix  string
	PersonaPrefix string
	Threshold     float64
}

// Service runs deduplication scans over the news corpus.
type Service struct {
	store         store.Store
	logger        zerolog.Logger
	globalPrefix  string
	personaPrefix string
	threshold     float64

	scanMu sync.Mutex
}

func NewService(st store.Store, logger zerolog.Logger, opts ServiceOptions) *Service {
	if strings.TrimSpace(opts.GlobalPrefix) == "" {
		opts.GlobalPrefix = defaultGlobalPrefix
	}
	if strings.TrimSpace(opts.PersonaPrefix) == "" {
		opts.PersonaPrefix = defaultPersonaPrefix
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = defaultThreshold
	}

	return &Service{
		store:         st,
		logger:        logger,
		globalPrefix:  opts.GlobalPrefix,
		personaPrefix: opts.PersonaPrefix,
		threshold:     opts.Threshold,
	}
}

// Run executes one scan. At most one scan runs at a time per service; a
// concurrent trigger fails fast with ErrScanInProgress.
func (s *Service) Run(ctx context.Context, opts Options) (*Report, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("dedup service is not initialized")
	}
	if !s.scanMu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer s.scanMu.Unlock()

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = s.threshold
	}
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("similarity threshold %v is outside (0, 1)", threshold)
	}

	report := &Report{
		RunID:  uuid.NewString(),
		DryRun: opts.DryRun,
	}
	logger := s.logger.With().Str("run_id", report.RunID).Logger()
	startedAt := time.Now()

	snapshot, err := s.loadCorpus(ctx, logger, report)
	if err != nil {
		return nil, err
	}

	pairs := s.collectMatches(snapshot, threshold, report)
	report.Matches = make([]Match, 0, len(pairs))
	for _, pair := range pairs {
		report.Matches = append(report.Matches, Match{
			SurvivorKey: snapshot[pair.survivor].Handle.Key,
			LoserKey:    snapshot[pair.loser].Handle.Key,
			Score:       pair.score,
		})
	}

	if !opts.DryRun {
		s.applyMatches(ctx, logger, snapshot, pairs, report)
	}
	report.DurationMS = time.Since(startedAt).Milliseconds()

	logger.Info().
		Int("loaded", report.Loaded).
		Int("skipped_objects", report.SkippedObjects).
		Int("comparisons", report.Comparisons).
		Int("matches", len(report.Matches)).
		Int("deleted", report.Deleted).
		Int("delete_failures", report.DeleteFailures).
		Int("cache_deleted", report.CacheDeleted).
		Bool("dry_run", report.DryRun).
		Dur("duration", time.Since(startedAt)).
		Msg("dedup scan finished")

	return report, nil
}

type pairMatch struct {
	survivor int
	loser    int
	score    float64
}

// collectMatches walks every alive pair of the snapshot in index order.
// Losers leave the working set the moment they are resolved, so no
// comparison ever involves an item that already lost earlier in the scan,
// and the working set only shrinks.
func (s *Service) collectMatches(snapshot []StoredItem, threshold float64, report *Report) []pairMatch {
	removed := make([]bool, len(snapshot))
	var pairs []pairMatch

	for i := 0; i < len(snapshot); i++ {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(snapshot); j++ {
			if removed[j] {
				continue
			}

			score := similarity.Ratio(snapshot[i].Item.Heading, snapshot[j].Item.Heading)
			report.Comparisons++
			if score <= threshold {
				continue
			}

			loser, survivor := resolvePair(snapshot, i, j)
			removed[loser] = true
			pairs = append(pairs, pairMatch{survivor: survivor, loser: loser, score: score})

			// When the row item itself lost there is nothing left to
			// compare it against.
			if loser == i {
				break
			}
		}
	}
	return pairs
}

// resolvePair picks the loser of a duplicate pair: the strictly older item
// loses. On equal timestamps the later-encountered item loses, keeping the
// outcome deterministic for a given snapshot order.
func resolvePair(snapshot []StoredItem, i, j int) (loser, survivor int) {
	if snapshot[i].Item.LastUpdated.Before(snapshot[j].Item.LastUpdated) {
		return i, j
	}
	return j, i
}

// applyMatches deletes each loser at its stored handle, then sweeps the
// persona cache for copies of that item. A failed primary delete aborts that
// pair only: the item stays live and its cascade is skipped.
func (s *Service) applyMatches(ctx context.Context, logger zerolog.Logger, snapshot []StoredItem, pairs []pairMatch, report *Report) {
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Msg("dedup apply aborted early")
			return
		}

		loser := snapshot[pair.loser]
		if loser.Handle.IsZero() {
			// A zero handle means the snapshot was built wrong; skip the
			// pair rather than guess at a key.
			report.DeleteFailures++
			logger.Error().Str("heading", loser.Item.Heading).Msg("loser has no storage handle, skipping pair")
			continue
		}

		if err := s.store.Delete(ctx, loser.Handle); err != nil {
			report.DeleteFailures++
			logger.Error().Err(err).Str("key", loser.Handle.Key).Msg("primary delete failed, item stays live")
			continue
		}
		report.Deleted++
		logger.Info().
			Str("deleted_key", loser.Handle.Key).
			Str("survivor_key", snapshot[pair.survivor].Handle.Key).
			Float64("score", pair.score).
			Time("loser_last_updated", loser.Item.LastUpdated).
			Msg("duplicate removed")

		report.CacheDeleted += s.purgePersonaCopies(ctx, logger, loser.Item.Source.URL)
	}
}

// purgePersonaCopies removes persona-cache objects whose keys embed the
// loser's encoded source URL. Best effort: failures here are logged and
// swallowed, and never touch the primary deletion counts.
func (s *Service) purgePersonaCopies(ctx context.Context, logger zerolog.Logger, sourceURL string) int {
	encoded := persona.EncodedURL(sourceURL)
	if encoded == "" {
		return 0
	}

	handles, err := s.store.List(ctx, s.personaPrefix)
	if err != nil {
		logger.Warn().Err(err).Msg("persona cache listing failed, skipping cascade")
		return 0
	}

	deleted := 0
	for _, handle := range handles {
		if !strings.Contains(handle.Key, encoded) {
			continue
		}
		if err := s.store.Delete(ctx, handle); err != nil {
			logger.Warn().Err(err).Str("key", handle.Key).Msg("persona cache delete failed")
			continue
		}
		deleted++
		logger.Debug().Str("key", handle.Key).Msg("persona cache copy removed")
	}
	return deleted
}
