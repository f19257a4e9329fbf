// Package classify defines the language-model boundary: turning a raw
// article into heading, summary, and bias analysis. The live provider client
// lives outside this repo; implementations are injected.
package classify

import (
	"context"
	"errors"
	"sync"

	"github.com/thenotsodarkknight/based/internal/news"
)

// ErrBudgetExhausted is returned once a run's classification budget is spent.
var ErrBudgetExhausted = errors.New("classification call budget exhausted")

// Classifier produces the analysis for one article.
type Classifier interface {
	Classify(ctx context.Context, article news.Article) (news.Analysis, error)
}

// Budget caps how many classification calls one run may spend. Each run
// builds and injects a fresh budget; nothing global is mutated.
type Budget struct {
	mu        sync.Mutex
	remaining int
}

func NewBudget(calls int) *Budget {
	if calls < 0 {
		calls = 0
	}
	return &Budget{remaining: calls}
}

// Take consumes one call if any remain.
func (b *Budget) Take() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Remaining reports how many calls are left.
func (b *Budget) Remaining() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// WithBudget wraps a classifier so every call spends from budget. Once the
// budget hits zero the inner classifier is no longer invoked.
func WithBudget(inner Classifier, budget *Budget) Classifier {
	return &budgetedClassifier{inner: inner, budget: budget}
}

type budgetedClassifier struct {
	inner  Classifier
	budget *Budget
}

func (c *budgetedClassifier) Classify(ctx context.Context, article news.Article) (news.Analysis, error) {
	if c.inner == nil {
		return news.Analysis{}, errors.New("no classifier configured")
	}
	if !c.budget.Take() {
		return news.Analysis{}, ErrBudgetExhausted
	}
	return c.inner.Classify(ctx, article)
}
