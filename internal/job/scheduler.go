package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/matchscrape/internal/logger"
)

// Schedule configures when refreshes run. Either trigger may be disabled:
// an empty Cron or a zero Interval.
type Schedule struct {
	Cron     string
	Interval time.Duration
	Location *time.Location
}

// DefaultSchedule refreshes daily at midnight São Paulo time and every 30
// minutes.
func DefaultSchedule() Schedule {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return Schedule{Cron: "0 0 * * *", Interval: 30 * time.Minute, Location: loc}
}

// Scheduler fires a Runner from a cron expression and a fixed interval.
type Scheduler struct {
	runner   *Runner
	schedule Schedule
	cron     *cron.Cron
	entry    cron.EntryID

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	nextTic time.Time
}

// NewScheduler validates the schedule.
func NewScheduler(r *Runner, s Schedule) (*Scheduler, error) {
	if s.Location == nil {
		s.Location = time.Local
	}
	if s.Interval < 0 {
		return nil, errors.New("interval must not be negative")
	}
	c := cron.New(
		cron.WithLocation(s.Location),
		cron.WithLogger(cronLogger{}),
	)
	sch := &Scheduler{runner: r, schedule: s, cron: c}
	if s.Cron != "" {
		if _, err := cron.ParseStandard(s.Cron); err != nil {
			return nil, fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
		}
	}
	return sch, nil
}

// Start begins firing. Runs use ctx; Stop or cancelling ctx ends them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if s.schedule.Cron != "" {
		id, err := s.cron.AddFunc(s.schedule.Cron, func() { s.fire(ctx, "cron") })
		if err != nil {
			cancel()
			s.cancel = nil
			return fmt.Errorf("failed to schedule refresh: %w", err)
		}
		s.entry = id
		s.cron.Start()
		logger.Info("daily refresh scheduled",
			"cron", s.schedule.Cron,
			"timezone", s.schedule.Location.String(),
			"next", s.cron.Entry(id).Next)
	}

	if s.schedule.Interval > 0 {
		s.wg.Add(1)
		go s.loop(ctx)
		logger.Info("interval refresh scheduled", "interval", s.schedule.Interval)
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	t := time.NewTicker(s.schedule.Interval)
	defer t.Stop()
	s.setNext(time.Now().Add(s.schedule.Interval))
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.setNext(now.Add(s.schedule.Interval))
			s.fire(ctx, "interval")
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	// Failures are recorded in the runner state.
	_, _ = s.runner.Run(ctx, trigger)
}

func (s *Scheduler) setNext(t time.Time) {
	s.mu.Lock()
	s.nextTic = t
	s.mu.Unlock()
}

// Next returns the next cron and interval fire times; zero when disabled
// or not started.
func (s *Scheduler) Next() (cronNext, intervalNext time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry != 0 {
		cronNext = s.cron.Entry(s.entry).Next
	}
	return cronNext, s.nextTic
}

// Schedule returns the configured schedule.
func (s *Scheduler) Schedule() Schedule { return s.schedule }

// Stop stops both triggers and waits for a running refresh to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	logger.Info("refresh scheduler stopped")
}

// cronLogger forwards cron's logging to the package logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logger.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
