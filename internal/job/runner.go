// Package job runs scrape refreshes on demand and on a schedule, never more
// than one at a time.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmylchreest/matchscrape/internal/logger"
)

// ErrBusy is returned when a refresh is requested while one is running.
var ErrBusy = errors.New("refresh already running")

// Status is the runner state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// Outcome summarizes a finished refresh.
type Outcome struct {
	Date    string        `json:"date"`
	Records int           `json:"records"`
	Healthy bool          `json:"healthy"`
	Took    time.Duration `json:"duration"`
}

// Func performs one refresh.
type Func func(ctx context.Context) (Outcome, error)

// State is a point-in-time view of the runner.
type State struct {
	Status      Status    `json:"status"`
	Runs        int       `json:"runs"`
	Failures    int       `json:"failures"`
	LastRun     time.Time `json:"last_run,omitzero"`
	LastSuccess time.Time `json:"last_success,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	LastOutcome *Outcome  `json:"last_outcome,omitempty"`
}

// Runner serializes refreshes. A request that arrives while a refresh is
// in flight is skipped rather than queued.
type Runner struct {
	fn      Func
	timeout time.Duration

	mu    sync.Mutex
	state State
}

// NewRunner wraps fn. A positive timeout bounds every run.
func NewRunner(fn Func, timeout time.Duration) *Runner {
	return &Runner{fn: fn, timeout: timeout, state: State{Status: StatusIdle}}
}

// Run performs a refresh unless one is already running, in which case it
// returns ErrBusy immediately.
func (r *Runner) Run(ctx context.Context, trigger string) (Outcome, error) {
	r.mu.Lock()
	if r.state.Status == StatusRunning {
		r.mu.Unlock()
		logger.Info("refresh already running, skipping", "trigger", trigger)
		return Outcome{}, ErrBusy
	}
	r.state.Status = StatusRunning
	r.state.LastRun = time.Now()
	r.state.Runs++
	r.mu.Unlock()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	logger.Info("refresh started", "trigger", trigger)
	start := time.Now()
	out, err := r.fn(ctx)
	out.Took = time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state.Status = StatusError
		r.state.Failures++
		r.state.LastError = err.Error()
		logger.Error("refresh failed", "trigger", trigger, "error", err)
		return out, err
	}
	r.state.Status = StatusIdle
	r.state.LastSuccess = time.Now()
	r.state.LastError = ""
	r.state.LastOutcome = &out
	logger.Info("refresh finished",
		"trigger", trigger,
		"records", out.Records,
		"healthy", out.Healthy,
		"duration", out.Took)
	return out, nil
}

// State returns a copy of the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.state
	if s.LastOutcome != nil {
		o := *s.LastOutcome
		s.LastOutcome = &o
	}
	return s
}
