// Package metrics exports selector health and recovery activity to Prometheus.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jmylchreest/matchscrape/pkg/recovery"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

const (
	// Namespace is the namespace for all metrics.
	Namespace = "matchscrape"
)

// Metrics holds all Prometheus collectors. It implements validate.Observer
// and recovery.Observer so it can be registered on a session directly.
type Metrics struct {
	// Validation metrics
	ValidationsTotal  *prometheus.CounterVec
	ValidationSeconds prometheus.Histogram

	// Recovery metrics
	StrategyInvocations *prometheus.CounterVec
	RecoveryRuns        *prometheus.CounterVec
	RecoveryAttempts    prometheus.Histogram

	// Scrape metrics
	ScrapesTotal      *prometheus.CounterVec
	ScrapeSeconds     prometheus.Histogram
	RecordsExtracted  prometheus.Gauge
	LastScrapeSuccess prometheus.Gauge
}

var (
	_ validate.Observer = (*Metrics)(nil)
	_ recovery.Observer = (*Metrics)(nil)
)

// New creates and registers all collectors on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	m := &Metrics{}

	m.ValidationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "validations_total",
			Help:      "Selector checks by category and outcome",
		},
		[]string{"category", "valid"},
	)
	m.ValidationSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "validation_duration_seconds",
			Help:      "Time spent checking a single selector",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
	)

	m.StrategyInvocations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "strategy_invocations_total",
			Help:      "Recovery strategy invocations by strategy and whether it reported progress",
		},
		[]string{"strategy", "progress"},
	)
	m.RecoveryRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recovery_runs_total",
			Help:      "Finished recovery runs by final state",
		},
		[]string{"state"},
	)
	m.RecoveryAttempts = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "recovery_attempts",
			Help:      "Top-level attempts used per recovery run",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		},
	)

	m.ScrapesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "scrapes_total",
			Help:      "Scrape runs by outcome",
		},
		[]string{"result"},
	)
	m.ScrapeSeconds = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Wall time of a full scrape run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	m.RecordsExtracted = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "records_extracted",
			Help:      "Records produced by the last scrape",
		},
	)
	m.LastScrapeSuccess = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "last_scrape_success_timestamp_seconds",
			Help:      "Unix time of the last successful scrape",
		},
	)
	return m
}

// OnValidation records one selector check.
func (m *Metrics) OnValidation(_ context.Context, ev validate.Event) {
	m.ValidationsTotal.WithLabelValues(string(ev.Category), strconv.FormatBool(ev.Valid)).Inc()
	m.ValidationSeconds.Observe(ev.Duration.Seconds())
}

// OnAttempt records one strategy invocation.
func (m *Metrics) OnAttempt(_ context.Context, a recovery.Attempt) {
	m.StrategyInvocations.WithLabelValues(string(a.Strategy), strconv.FormatBool(a.Succeeded)).Inc()
}

// OnFinish records a finished recovery run.
func (m *Metrics) OnFinish(_ context.Context, r recovery.Result) {
	m.RecoveryRuns.WithLabelValues(string(r.State)).Inc()
	m.RecoveryAttempts.Observe(float64(r.Attempts))
}

// RecordScrape records a scrape run. err is the run's failure, if any.
func (m *Metrics) RecordScrape(records int, d time.Duration, err error) {
	m.ScrapeSeconds.Observe(d.Seconds())
	if err != nil {
		m.ScrapesTotal.WithLabelValues("error").Inc()
		return
	}
	m.ScrapesTotal.WithLabelValues("ok").Inc()
	m.RecordsExtracted.Set(float64(records))
	m.LastScrapeSuccess.SetToCurrentTime()
}
