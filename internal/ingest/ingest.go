// Package ingest turns raw article payloads into stored news items and fans
// matching items out to persona caches.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thenotsodarkknight/based/internal/classify"
	"github.com/thenotsodarkknight/based/internal/globaltime"
	"github.com/thenotsodarkknight/based/internal/news"
	"github.com/thenotsodarkknight/based/internal/persona"
	"github.com/thenotsodarkknight/based/internal/store"
)

const (
	defaultGlobalPrefix  = "news/global/"
	defaultPersonaPrefix = "news/personas/"
)

// ErrInvalidPayload marks article payloads that failed decoding or schema
// validation, as opposed to downstream classifier or storage failures.
var ErrInvalidPayload = errors.New("invalid article payload")

// Service writes classified news items into the global namespace. Persona
// copies are derivative: a failure to write one never fails the ingest.
type Service struct {
	store          store.Store
	classifier     classify.Classifier
	logger         zerolog.Logger
	personas       []persona.Persona
	globalPrefix   string
	personaPrefix  string
	classifyBudget int
}

// ServiceOptions configures a Service. Zero values fall back to defaults.
type ServiceOptions struct {
	GlobalPrefix  string
	PersonaPrefix string
	Personas      []persona.Persona
	// ClassifyBudget caps classifier calls inside one batch run. Zero means
	// no cap.
	ClassifyBudget int
}

// Result reports what a single ingest stored.
type Result struct {
	Handle store.Handle `json:"handle"`
	// Classified is true when the classifier produced the analysis, false
	// when the payload carried one already.
	Classified      bool `json:"classified"`
	PersonaCopies   int  `json:"persona_copies"`
	PersonaFailures int  `json:"persona_failures"`
}

// BatchReport aggregates one batch run.
type BatchReport struct {
	Processed       int `json:"processed"`
	Ingested        int `json:"ingested"`
	Failed          int `json:"failed"`
	Classified      int `json:"classified"`
	PersonaCopies   int `json:"persona_copies"`
	PersonaFailures int `json:"persona_failures"`
}

func NewService(st store.Store, classifier classify.Classifier, logger zerolog.Logger, opts ServiceOptions) *Service {
	if opts.GlobalPrefix == "" {
		opts.GlobalPrefix = defaultGlobalPrefix
	}
	if opts.PersonaPrefix == "" {
		opts.PersonaPrefix = defaultPersonaPrefix
	}
	return &Service{
		store:          st,
		classifier:     classifier,
		logger:         logger,
		personas:       opts.Personas,
		globalPrefix:   opts.GlobalPrefix,
		personaPrefix:  opts.PersonaPrefix,
		classifyBudget: opts.ClassifyBudget,
	}
}

// IngestOne decodes one article payload, classifies it when the payload does
// not carry an analysis, and stores the resulting item.
func (s *Service) IngestOne(ctx context.Context, payload []byte) (*Result, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("ingest service is not initialized")
	}
	return s.ingestWith(ctx, s.classifier, payload)
}

// IngestBatch ingests a slice of article payloads as one run. Classifier
// calls inside the run share a fresh budget, so a large batch of raw
// payloads cannot spend unbounded classification calls. Per-payload failures
// are logged and counted; the run keeps going.
func (s *Service) IngestBatch(ctx context.Context, payloads [][]byte) (*BatchReport, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("ingest service is not initialized")
	}

	classifier := s.classifier
	if classifier != nil && s.classifyBudget > 0 {
		classifier = classify.WithBudget(classifier, classify.NewBudget(s.classifyBudget))
	}

	report := &BatchReport{}
	for i, payload := range payloads {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("batch aborted after %d of %d payloads: %w", i, len(payloads), err)
		}
		report.Processed++
		result, err := s.ingestWith(ctx, classifier, payload)
		if err != nil {
			report.Failed++
			s.logger.Warn().Err(err).Int("index", i).Msg("payload ingest failed")
			continue
		}
		report.Ingested++
		if result.Classified {
			report.Classified++
		}
		report.PersonaCopies += result.PersonaCopies
		report.PersonaFailures += result.PersonaFailures
	}

	s.logger.Info().
		Int("processed", report.Processed).
		Int("ingested", report.Ingested).
		Int("failed", report.Failed).
		Int("classified", report.Classified).
		Msg("batch ingested")

	return report, nil
}

func (s *Service) ingestWith(ctx context.Context, classifier classify.Classifier, payload []byte) (*Result, error) {
	article, err := news.DecodeArticle(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	result := &Result{}
	analysis := article.Analysis
	if analysis == nil {
		if classifier == nil {
			return nil, fmt.Errorf("article carries no analysis and no classifier is configured")
		}
		classified, err := classifier.Classify(ctx, *article)
		if err != nil {
			return nil, fmt.Errorf("classify article: %w", err)
		}
		analysis = &classified
		result.Classified = true
	}

	item := &news.Item{
		Heading: analysis.Heading,
		Summary: analysis.Summary,
		Source: news.Source{
			URL:             article.URL,
			Name:            article.SourceName,
			Bias:            analysis.Bias,
			BiasExplanation: analysis.BiasExplanation,
		},
		LastUpdated: globaltime.UTC(),
		ModelUsed:   analysis.ModelUsed,
	}

	data, err := news.EncodeItem(item)
	if err != nil {
		return nil, fmt.Errorf("encode item: %w", err)
	}

	key := s.globalPrefix + uuid.NewString() + ".json"
	handle, err := s.store.Put(ctx, key, data)
	if err != nil {
		return nil, fmt.Errorf("store item: %w", err)
	}
	result.Handle = handle

	for _, p := range s.personas {
		if !p.Matches(*item) {
			continue
		}
		cacheKey := persona.CacheKey(s.personaPrefix, p.Name, item.Source.URL)
		if _, err := s.store.Put(ctx, cacheKey, data); err != nil {
			result.PersonaFailures++
			s.logger.Warn().
				Err(err).
				Str("persona", p.Name).
				Str("key", cacheKey).
				Msg("persona copy write failed")
			continue
		}
		result.PersonaCopies++
	}

	s.logger.Info().
		Str("key", handle.Key).
		Bool("classified", result.Classified).
		Int("persona_copies", result.PersonaCopies).
		Str("source_url", item.Source.URL).
		Msg("article ingested")

	return result, nil
}
