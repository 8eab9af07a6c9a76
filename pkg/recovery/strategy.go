package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

// ErrUnknownStrategy is returned for a strategy name outside the closed set.
var ErrUnknownStrategy = errors.New("unknown recovery strategy")

// StrategyName identifies a recovery strategy.
type StrategyName string

const (
	ReloadPage        StrategyName = "reload-page"
	RedetectSelectors StrategyName = "re-detect-selectors"
	TryAlternatives   StrategyName = "try-alternative-catalog-entries"
	TextHeuristics    StrategyName = "extract-by-text-heuristics"
	AnalyzeDOM        StrategyName = "analyze-dom-structure"
)

// DefaultOrder is the order strategies run in unless configured otherwise.
var DefaultOrder = []StrategyName{ReloadPage, RedetectSelectors, TryAlternatives, TextHeuristics, AnalyzeDOM}

// Session is the state one recovery loop works on: the page, where it was
// loaded from, the resolver with its catalog and the current selectors.
// Strategies mutate Selectors and the catalog in place.
type Session struct {
	Page      dom.Page
	URL       string
	Resolver  *selector.Resolver
	Selectors selector.ResolvedSet
}

// Catalog returns the session's catalog.
func (s *Session) Catalog() *selector.Catalog { return s.Resolver.Catalog() }

// Env is what a strategy receives on each attempt.
type Env struct {
	*Session
	Failing   []selector.Category
	Validator *validate.Validator
	Config    Config
}

// timeout bounds a strategy's page work by the validation timeout.
func (e *Env) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Config.ValidationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Config.ValidationTimeout)
}

// Strategy is a named procedure that tries to restore working selectors.
// Attempt reports whether it believes it made progress. An error means the
// strategy could not run to completion; it never means the loop must stop.
type Strategy interface {
	Name() StrategyName
	Attempt(ctx context.Context, env *Env) (bool, error)
}

// NewStrategy returns the implementation of name.
func NewStrategy(name StrategyName) (Strategy, error) {
	switch name {
	case ReloadPage:
		return reloadPage{}, nil
	case RedetectSelectors:
		return redetectSelectors{}, nil
	case TryAlternatives:
		return tryAlternatives{}, nil
	case TextHeuristics:
		return textHeuristics{}, nil
	case AnalyzeDOM:
		return analyzeDOM{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, string(name))
}

// ParseStrategies converts configured names into strategies, in order.
func ParseStrategies(names []string) ([]StrategyName, error) {
	out := make([]StrategyName, 0, len(names))
	for _, n := range names {
		if _, err := NewStrategy(StrategyName(n)); err != nil {
			return nil, err
		}
		out = append(out, StrategyName(n))
	}
	return out, nil
}

// Attempt is one strategy invocation in the recovery history.
type Attempt struct {
	Strategy  StrategyName  `json:"strategy" yaml:"strategy"`
	Attempt   int           `json:"attempt" yaml:"attempt"`
	At        time.Time     `json:"timestamp" yaml:"timestamp"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Succeeded bool          `json:"succeeded" yaml:"succeeded"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
}
