package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thenotsodarkknight/based/internal/classify"
	"github.com/thenotsodarkknight/based/internal/news"
	"github.com/thenotsodarkknight/based/internal/persona"
	"github.com/thenotsodarkknight/based/internal/store"
)

type fakeClassifier struct {
	calls    int
	analysis news.Analysis
	err      error
}

func (f *fakeClassifier) Classify(_ context.Context, _ news.Article) (news.Analysis, error) {
	f.calls++
	if f.err != nil {
		return news.Analysis{}, f.err
	}
	return f.analysis, nil
}

// personaRejectingStore fails writes under one key prefix.
type personaRejectingStore struct {
	store.Store
	rejectPrefix string
}

func (s *personaRejectingStore) Put(ctx context.Context, key string, data []byte) (store.Handle, error) {
	if strings.HasPrefix(key, s.rejectPrefix) {
		return store.Handle{}, fmt.Errorf("simulated put failure")
	}
	return s.Store.Put(ctx, key, data)
}

func testAnalysis() news.Analysis {
	return news.Analysis{
		Heading:         "Senate passes budget bill",
		Summary:         "The senate approved the annual budget on Friday.",
		Bias:            "center",
		BiasExplanation: "Straight reporting without loaded language.",
		ModelUsed:       "test-model-1",
	}
}

func rawArticle() []byte {
	return []byte(`{
		"title": "Senate passes budget bill",
		"content": "The senate passed the annual budget bill on Friday after a long session.",
		"url": "https://example.com/budget",
		"source_name": "Example Wire"
	}`)
}

func classifiedArticle() []byte {
	return []byte(`{
		"title": "Senate passes budget bill",
		"content": "The senate passed the annual budget bill on Friday after a long session.",
		"url": "https://example.com/budget",
		"source_name": "Example Wire",
		"analysis": {
			"heading": "Senate passes budget bill",
			"summary": "The senate approved the annual budget on Friday.",
			"bias": "center",
			"model_used": "upstream-model"
		}
	}`)
}

func newTestService(st store.Store, classifier classify.Classifier, personas []persona.Persona) *Service {
	return NewService(st, classifier, zerolog.Nop(), ServiceOptions{Personas: personas})
}

func TestIngestOne_ClassifiesWhenAnalysisMissing(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	fake := &fakeClassifier{analysis: testAnalysis()}

	result, err := newTestService(mem, fake, nil).IngestOne(context.Background(), rawArticle())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if fake.calls != 1 {
		t.Fatalf("unexpected classifier call count: got %d want 1", fake.calls)
	}
	if !result.Classified {
		t.Fatalf("result should be flagged as classified")
	}
	if !strings.HasPrefix(result.Handle.Key, "news/global/") {
		t.Fatalf("item stored outside the global namespace: %s", result.Handle.Key)
	}

	data, err := mem.Get(context.Background(), result.Handle)
	if err != nil {
		t.Fatalf("read stored item: %v", err)
	}
	item, err := news.DecodeItem(data)
	if err != nil {
		t.Fatalf("decode stored item: %v", err)
	}
	if item.Heading != "Senate passes budget bill" {
		t.Fatalf("unexpected heading: %q", item.Heading)
	}
	if item.ModelUsed != "test-model-1" {
		t.Fatalf("unexpected model: %q", item.ModelUsed)
	}
	if item.Source.URL != "https://example.com/budget" {
		t.Fatalf("unexpected source url: %q", item.Source.URL)
	}
	if item.LastUpdated.IsZero() || time.Since(item.LastUpdated) > time.Minute {
		t.Fatalf("unexpected last_updated: %v", item.LastUpdated)
	}
}

func TestIngestOne_PreClassifiedSkipsClassifier(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	fake := &fakeClassifier{analysis: testAnalysis()}

	result, err := newTestService(mem, fake, nil).IngestOne(context.Background(), classifiedArticle())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if fake.calls != 0 {
		t.Fatalf("classifier must not run for pre-classified payloads, got %d calls", fake.calls)
	}
	if result.Classified {
		t.Fatalf("result should not be flagged as classified")
	}

	data, err := mem.Get(context.Background(), result.Handle)
	if err != nil {
		t.Fatalf("read stored item: %v", err)
	}
	item, err := news.DecodeItem(data)
	if err != nil {
		t.Fatalf("decode stored item: %v", err)
	}
	if item.ModelUsed != "upstream-model" {
		t.Fatalf("unexpected model: %q", item.ModelUsed)
	}
}

func TestIngestOne_BudgetStopsClassification(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	inner := &fakeClassifier{analysis: testAnalysis()}
	svc := newTestService(mem, classify.WithBudget(inner, classify.NewBudget(1)), nil)

	if _, err := svc.IngestOne(context.Background(), rawArticle()); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	_, err := svc.IngestOne(context.Background(), rawArticle())
	if !errors.Is(err, classify.ErrBudgetExhausted) {
		t.Fatalf("expected budget exhaustion, got: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner classifier ran past the budget: %d calls", inner.calls)
	}
}

func TestIngestOne_WritesMatchingPersonaCopies(t *testing.T) {
	t.Parallel()

	personas, err := persona.ParseSet("markets:budget,economy;commuter:transit,rail")
	if err != nil {
		t.Fatalf("parse personas: %v", err)
	}

	mem := store.NewMemory()
	fake := &fakeClassifier{analysis: testAnalysis()}

	result, err := newTestService(mem, fake, personas).IngestOne(context.Background(), rawArticle())
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if result.PersonaCopies != 1 {
		t.Fatalf("unexpected persona copy count: got %d want 1", result.PersonaCopies)
	}

	marketsKey := persona.CacheKey("news/personas/", "markets", "https://example.com/budget")
	if _, err := mem.Get(context.Background(), store.Handle{Key: marketsKey}); err != nil {
		t.Fatalf("expected markets copy at %s: %v", marketsKey, err)
	}
	commuterKey := persona.CacheKey("news/personas/", "commuter", "https://example.com/budget")
	if _, err := mem.Get(context.Background(), store.Handle{Key: commuterKey}); !store.IsNotFound(err) {
		t.Fatalf("commuter persona must not match this item: %v", err)
	}
}

func TestIngestOne_PersonaWriteFailureDoesNotFailIngest(t *testing.T) {
	t.Parallel()

	personas, err := persona.ParseSet("markets:budget")
	if err != nil {
		t.Fatalf("parse personas: %v", err)
	}

	mem := store.NewMemory()
	st := &personaRejectingStore{Store: mem, rejectPrefix: "news/personas/"}
	fake := &fakeClassifier{analysis: testAnalysis()}

	result, err := newTestService(st, fake, personas).IngestOne(context.Background(), rawArticle())
	if err != nil {
		t.Fatalf("persona write failure must not fail the ingest: %v", err)
	}

	if result.PersonaCopies != 0 || result.PersonaFailures != 1 {
		t.Fatalf("unexpected persona counts: %+v", result)
	}
	if _, err := mem.Get(context.Background(), result.Handle); err != nil {
		t.Fatalf("primary item must still be stored: %v", err)
	}
}

func TestIngestOne_RejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	svc := newTestService(store.NewMemory(), &fakeClassifier{analysis: testAnalysis()}, nil)
	_, err := svc.IngestOne(context.Background(), []byte(`{"title": ""}`))
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got: %v", err)
	}
}

func TestIngestOne_RequiresClassifierForRawPayloads(t *testing.T) {
	t.Parallel()

	svc := newTestService(store.NewMemory(), nil, nil)
	if _, err := svc.IngestOne(context.Background(), rawArticle()); err == nil {
		t.Fatalf("expected an error when no classifier is configured")
	}
}

func TestIngestBatch_BudgetIsPerRun(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	fake := &fakeClassifier{analysis: testAnalysis()}
	svc := NewService(mem, fake, zerolog.Nop(), ServiceOptions{ClassifyBudget: 1})

	report, err := svc.IngestBatch(context.Background(), [][]byte{
		rawArticle(),
		rawArticle(),
		classifiedArticle(),
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if report.Processed != 3 || report.Ingested != 2 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Classified != 1 {
		t.Fatalf("unexpected classified count: got %d want 1", report.Classified)
	}
	if fake.calls != 1 {
		t.Fatalf("classifier ran past the run budget: %d calls", fake.calls)
	}

	// A new run starts with a fresh budget.
	report, err = svc.IngestBatch(context.Background(), [][]byte{rawArticle()})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if report.Ingested != 1 || report.Failed != 0 {
		t.Fatalf("unexpected second report: %+v", report)
	}
	if fake.calls != 2 {
		t.Fatalf("unexpected classifier call count after second run: got %d want 2", fake.calls)
	}
}

func TestIngestBatch_CollectsPerPayloadFailures(t *testing.T) {
	t.Parallel()

	svc := newTestService(store.NewMemory(), &fakeClassifier{analysis: testAnalysis()}, nil)
	report, err := svc.IngestBatch(context.Background(), [][]byte{
		[]byte(`{not json`),
		classifiedArticle(),
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if report.Processed != 2 || report.Ingested != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestIngestBatch_CanceledContextAborts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(store.NewMemory(), &fakeClassifier{analysis: testAnalysis()}, nil)
	report, err := svc.IngestBatch(ctx, [][]byte{classifiedArticle()})
	if err == nil {
		t.Fatalf("expected an error from a canceled context")
	}
	if report.Processed != 0 {
		t.Fatalf("no payload should be processed after cancellation: %+v", report)
	}
}
