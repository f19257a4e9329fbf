package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/thenotsodarkknight/based/internal/news"
)

type countingClassifier struct {
	calls int
}

func (c *countingClassifier) Classify(_ context.Context, _ news.Article) (news.Analysis, error) {
	c.calls++
	return news.Analysis{
		Heading: "heading",
		Summary: "summary",
		Bias:    "center",
	}, nil
}

func TestBudget_Take(t *testing.T) {
	t.Parallel()

	budget := NewBudget(2)
	if !budget.Take() || !budget.Take() {
		t.Fatalf("expected two takes to succeed")
	}
	if budget.Take() {
		t.Fatalf("expected third take to fail")
	}
	if got := budget.Remaining(); got != 0 {
		t.Fatalf("unexpected remaining: got %d want 0", got)
	}

	if NewBudget(-5).Take() {
		t.Fatalf("negative budget should behave as zero")
	}
}

func TestWithBudget_StopsInnerCalls(t *testing.T) {
	t.Parallel()

	inner := &countingClassifier{}
	classifier := WithBudget(inner, NewBudget(1))

	article := news.Article{Title: "t", Content: "c", URL: "https://example.com/a", SourceName: "s"}

	if _, err := classifier.Classify(context.Background(), article); err != nil {
		t.Fatalf("first call should succeed: %v", err)
	}
	if _, err := classifier.Classify(context.Background(), article); !errors.Is(err, ErrBudgetExhausted) {
		t.Fatalf("expected ErrBudgetExhausted, got: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner classifier called %d times, want 1", inner.calls)
	}
}
