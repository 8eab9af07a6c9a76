// Package recovery restores working selectors after validation failures.
//
// The Engine is a small state machine. Each top-level attempt validates the
// session's selectors; on failure it runs the configured strategies in
// order, re-validating after any strategy that reports progress. When a
// full pass leaves the session unhealthy it waits and starts the next
// attempt, until the attempt budget is spent.
package recovery

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

// State is a recovery state machine state.
type State string

const (
	Validating State = "validating"
	Recovering State = "recovering"
	Healthy    State = "healthy"
	Exhausted  State = "exhausted"
)

// Result is the structured outcome of Run. Exhaustion is reported here,
// not as an error.
type Result struct {
	Succeeded bool                     `json:"succeeded" yaml:"succeeded"`
	State     State                    `json:"state" yaml:"state"`
	Attempts  int                      `json:"attempts" yaml:"attempts"`
	History   []Attempt                `json:"history" yaml:"history"`
	Metrics   validate.MetricsSnapshot `json:"metrics" yaml:"metrics"`
	Selectors selector.ResolvedSet     `json:"selectors" yaml:"selectors"`
	Failed    []selector.Category      `json:"failed,omitempty" yaml:"failed,omitempty"`
	Err       string                   `json:"error,omitempty" yaml:"error,omitempty"`
}

// Observer is notified of every strategy invocation and of each finished run.
type Observer interface {
	OnAttempt(ctx context.Context, a Attempt)
	OnFinish(ctx context.Context, r Result)
}

// Engine drives recovery for a session.
type Engine struct {
	config     Config
	strategies []Strategy
	validator  *validate.Validator
	observers  []Observer
	history    []Attempt
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver registers an observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// NewEngine validates cfg and builds its strategies. Metrics are shared
// with v.
func NewEngine(cfg Config, v *validate.Validator, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{config: cfg, validator: v}
	for _, name := range cfg.Strategies {
		s, err := NewStrategy(name)
		if err != nil {
			return nil, err
		}
		e.strategies = append(e.strategies, s)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Validator returns the validator the engine re-validates with.
func (e *Engine) Validator() *validate.Validator { return e.validator }

// History returns every attempt across all runs, oldest first.
func (e *Engine) History() []Attempt { return slices.Clone(e.history) }

// Run validates the session and recovers it if needed. It performs at
// most MaxAttempts × len(strategies) strategy invocations. Cancelling ctx
// stops the loop between strategies.
func (e *Engine) Run(ctx context.Context, s *Session) Result {
	if s.Selectors == nil {
		s.Selectors = selector.ResolvedSet{}
	}
	log := logger.Component("recovery")
	start := len(e.history)
	metrics := e.validator.Metrics()

	finish := func(state State, attempts int, report validate.Report, err error) Result {
		r := Result{
			Succeeded: state == Healthy,
			State:     state,
			Attempts:  attempts,
			History:   slices.Clone(e.history[start:]),
			Metrics:   metrics.Snapshot(),
			Selectors: s.Selectors.Clone(),
			Failed:    report.Failed,
		}
		if err != nil {
			r.Err = err.Error()
		}
		for _, o := range e.observers {
			o.OnFinish(ctx, r)
		}
		return r
	}

	var report validate.Report
	for attempt := 1; attempt <= e.config.MaxAttempts; attempt++ {
		report = e.validator.ValidateAll(ctx, s.Page, s.Selectors)
		if report.Healthy() {
			if attempt > 1 {
				metrics.RecordRecovery()
			}
			log.Info("selectors healthy", "attempt", attempt)
			return finish(Healthy, attempt, report, nil)
		}

		log.Warn("recovering selectors", "attempt", attempt, "max_attempts", e.config.MaxAttempts, "failed", report.Failed)
		env := &Env{Session: s, Failing: report.Failed, Validator: e.validator, Config: e.config}
		for _, st := range e.strategies {
			if err := ctx.Err(); err != nil {
				return finish(Exhausted, attempt, report, fmt.Errorf("recovery cancelled: %w", err))
			}
			progressed := e.invoke(ctx, st, env, attempt)
			if !progressed {
				continue
			}
			report = e.validator.ValidateAll(ctx, s.Page, s.Selectors)
			if report.Healthy() {
				metrics.RecordRecovery()
				log.Info("recovery succeeded", "attempt", attempt, "strategy", st.Name())
				return finish(Healthy, attempt, report, nil)
			}
			env.Failing = report.Failed
		}

		if attempt < e.config.MaxAttempts {
			if err := dom.Sleep(ctx, e.config.AttemptDelay); err != nil {
				return finish(Exhausted, attempt, report, fmt.Errorf("recovery cancelled: %w", err))
			}
		}
	}

	log.Error("recovery exhausted", "attempts", e.config.MaxAttempts, "failed", report.Failed)
	return finish(Exhausted, e.config.MaxAttempts, report, nil)
}

func (e *Engine) invoke(ctx context.Context, st Strategy, env *Env, attempt int) bool {
	e.validator.Metrics().RecordStrategy(string(st.Name()))
	started := time.Now()
	ok, err := st.Attempt(ctx, env)
	a := Attempt{
		Strategy:  st.Name(),
		Attempt:   attempt,
		At:        started,
		Duration:  time.Since(started),
		Succeeded: ok,
	}
	if err != nil {
		a.Error = err.Error()
	}
	e.history = append(e.history, a)
	logger.Debug("strategy finished",
		"strategy", st.Name(),
		"attempt", attempt,
		"progress", ok,
		"error", a.Error)
	for _, o := range e.observers {
		o.OnAttempt(ctx, a)
	}
	return ok
}
