// Package validate re-checks resolved selectors against the live page and
// reports which categories have stopped matching.
package validate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/selector"
)

// ErrUnresolved marks a category that has no selector to check.
var ErrUnresolved = errors.New("no selector resolved")

// Report is the outcome of validating a resolved set.
type Report struct {
	PerCategory map[selector.Category]bool `json:"per_category" yaml:"per_category"`
	Failed      []selector.Category        `json:"failed" yaml:"failed"`
}

// Healthy reports whether every checked category passed.
func (r Report) Healthy() bool {
	return len(r.Failed) == 0
}

// Event records a single selector check.
type Event struct {
	Category selector.Category `json:"category" yaml:"category"`
	Selector string            `json:"selector" yaml:"selector"`
	Valid    bool              `json:"valid" yaml:"valid"`
	Count    int               `json:"count" yaml:"count"`
	Samples  []Sample          `json:"samples,omitempty" yaml:"samples,omitempty"`
	Duration time.Duration     `json:"duration" yaml:"duration"`
	At       time.Time         `json:"timestamp" yaml:"timestamp"`
	Error    string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// Sample describes one matched element.
type Sample struct {
	Tag     string   `json:"tag" yaml:"tag"`
	Classes []string `json:"classes,omitempty" yaml:"classes,omitempty"`
	Text    string   `json:"text,omitempty" yaml:"text,omitempty"`
}

// Observer receives every validation event.
type Observer interface {
	OnValidation(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// OnValidation calls f.
func (f ObserverFunc) OnValidation(ctx context.Context, ev Event) { f(ctx, ev) }

// Validator checks resolved selectors. It keeps the full event history
// and updates the session metrics on every check.
type Validator struct {
	categories []selector.Category
	timeout    time.Duration
	samples    int
	metrics    *Metrics
	observers  []Observer
	history    []Event
}

// Option configures a Validator.
type Option func(*Validator)

// WithCategories limits validation to cats.
func WithCategories(cats ...selector.Category) Option {
	return func(v *Validator) { v.categories = slices.Clone(cats) }
}

// WithTimeout bounds each page evaluation.
func WithTimeout(d time.Duration) Option {
	return func(v *Validator) { v.timeout = d }
}

// WithMetrics shares counters with other components of a session.
func WithMetrics(m *Metrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// WithObserver registers an observer for validation events.
func WithObserver(o Observer) Option {
	return func(v *Validator) { v.observers = append(v.observers, o) }
}

// New returns a Validator over every category with a 10s timeout.
func New(opts ...Option) *Validator {
	v := &Validator{
		categories: slices.Clone(selector.Categories),
		timeout:    10 * time.Second,
		samples:    3,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.metrics == nil {
		v.metrics = NewMetrics()
	}
	return v
}

// Metrics returns the counters the validator updates.
func (v *Validator) Metrics() *Metrics { return v.metrics }

// History returns every event recorded so far, oldest first.
func (v *Validator) History() []Event { return slices.Clone(v.history) }

// Categories returns the categories this validator checks.
func (v *Validator) Categories() []selector.Category { return slices.Clone(v.categories) }

// ValidateAll checks every configured category of set against the page.
// Page failures (not loaded, timeout) fail every category.
func (v *Validator) ValidateAll(ctx context.Context, p dom.Page, set selector.ResolvedSet) Report {
	var events []Event
	err := v.evaluate(ctx, p, func(doc *dom.Document) error {
		events = make([]Event, 0, len(v.categories))
		for _, cat := range v.categories {
			pattern, _ := set.Get(cat)
			events = append(events, v.check(doc, cat, pattern))
		}
		return nil
	})
	if err != nil {
		events = events[:0]
		for _, cat := range v.categories {
			pattern, _ := set.Get(cat)
			events = append(events, Event{Category: cat, Selector: pattern, At: time.Now(), Error: err.Error()})
		}
	}

	report := Report{PerCategory: make(map[selector.Category]bool, len(events))}
	for _, ev := range events {
		v.record(ctx, ev)
		report.PerCategory[ev.Category] = ev.Valid
		if !ev.Valid {
			report.Failed = append(report.Failed, ev.Category)
		}
	}
	if report.Healthy() {
		logger.Debug("selectors healthy", "checked", len(events))
	} else {
		logger.Warn("selector validation failed", "failed", report.Failed)
	}
	return report
}

// ValidateDocument checks set against an already captured document.
func (v *Validator) ValidateDocument(doc *dom.Document, set selector.ResolvedSet) Report {
	report := Report{PerCategory: make(map[selector.Category]bool, len(v.categories))}
	for _, cat := range v.categories {
		pattern, _ := set.Get(cat)
		ev := v.check(doc, cat, pattern)
		v.record(context.Background(), ev)
		report.PerCategory[cat] = ev.Valid
		if !ev.Valid {
			report.Failed = append(report.Failed, cat)
		}
	}
	return report
}

// Validate checks a single pattern for cat.
func (v *Validator) Validate(ctx context.Context, p dom.Page, cat selector.Category, pattern string) bool {
	var ev Event
	err := v.evaluate(ctx, p, func(doc *dom.Document) error {
		ev = v.check(doc, cat, pattern)
		return nil
	})
	if err != nil {
		ev = Event{Category: cat, Selector: pattern, At: time.Now(), Error: err.Error()}
	}
	v.record(ctx, ev)
	return ev.Valid
}

// FirstValid checks patterns for cat in order within a single page
// evaluation and returns the first that passes.
func (v *Validator) FirstValid(ctx context.Context, p dom.Page, cat selector.Category, patterns []string) (string, bool) {
	var events []Event
	err := v.evaluate(ctx, p, func(doc *dom.Document) error {
		for _, pattern := range patterns {
			ev := v.check(doc, cat, pattern)
			events = append(events, ev)
			if ev.Valid {
				break
			}
		}
		return nil
	})
	if err != nil {
		v.record(ctx, Event{Category: cat, At: time.Now(), Error: err.Error()})
		return "", false
	}
	for _, ev := range events {
		v.record(ctx, ev)
		if ev.Valid {
			return ev.Selector, true
		}
	}
	return "", false
}

func (v *Validator) evaluate(ctx context.Context, p dom.Page, fn dom.QueryFunc) error {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	err := p.Evaluate(ctx, fn)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", dom.ErrTimeout, err)
	}
	return err
}

// check passes iff pattern is valid CSS and matches at least one element.
func (v *Validator) check(doc *dom.Document, cat selector.Category, pattern string) Event {
	start := time.Now()
	ev := Event{Category: cat, Selector: pattern, At: start}
	if pattern == "" {
		ev.Error = ErrUnresolved.Error()
		return ev
	}
	s, err := doc.Query(pattern)
	ev.Duration = time.Since(start)
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	ev.Count = s.Length()
	ev.Valid = ev.Count > 0
	s.Slice(0, min(v.samples, ev.Count)).Each(func(_ int, el *goquery.Selection) {
		ev.Samples = append(ev.Samples, Sample{
			Tag:     dom.TagName(el),
			Classes: dom.ClassList(el),
			Text:    truncate(dom.Text(el), 50),
		})
	})
	return ev
}

func (v *Validator) record(ctx context.Context, ev Event) {
	v.metrics.recordValidation(ev.Duration, ev.Valid)
	v.history = append(v.history, ev)
	logger.Debug("selector checked",
		"category", ev.Category,
		"selector", ev.Selector,
		"valid", ev.Valid,
		"count", ev.Count)
	for _, o := range v.observers {
		o.OnValidation(ctx, ev)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
