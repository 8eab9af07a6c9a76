package validate

import (
	"maps"
	"time"
)

// Metrics are running counters for one session. They are cumulative for
// the lifetime of the owning process and are never reset.
type Metrics struct {
	validations int
	failures    int
	recoveries  int
	strategies  map[string]int
	latency     time.Duration
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{strategies: map[string]int{}}
}

func (m *Metrics) recordValidation(d time.Duration, ok bool) {
	m.validations++
	m.latency += d
	if !ok {
		m.failures++
	}
}

// RecordStrategy counts one invocation of the named recovery strategy.
func (m *Metrics) RecordStrategy(name string) {
	m.strategies[name]++
}

// RecordRecovery counts a recovery that restored a healthy state.
func (m *Metrics) RecordRecovery() {
	m.recoveries++
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	ValidationsPerformed int            `json:"validations_performed" yaml:"validations_performed"`
	FailuresDetected     int            `json:"failures_detected" yaml:"failures_detected"`
	SuccessfulRecoveries int            `json:"successful_recoveries" yaml:"successful_recoveries"`
	StrategyInvocations  map[string]int `json:"strategy_invocations" yaml:"strategy_invocations"`
	ValidationLatency    time.Duration  `json:"validation_latency" yaml:"validation_latency"`
}

// AverageLatency returns the mean time spent per validation.
func (s MetricsSnapshot) AverageLatency() time.Duration {
	if s.ValidationsPerformed == 0 {
		return 0
	}
	return s.ValidationLatency / time.Duration(s.ValidationsPerformed)
}

// SuccessRate returns the fraction of validations that passed.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.ValidationsPerformed == 0 {
		return 0
	}
	return float64(s.ValidationsPerformed-s.FailuresDetected) / float64(s.ValidationsPerformed)
}

// Snapshot returns a deep copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ValidationsPerformed: m.validations,
		FailuresDetected:     m.failures,
		SuccessfulRecoveries: m.recoveries,
		StrategyInvocations:  maps.Clone(m.strategies),
		ValidationLatency:    m.latency,
	}
}
