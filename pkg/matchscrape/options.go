// Package matchscrape provides the public API for adaptive match extraction.
package matchscrape

import (
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/history"
	"github.com/jmylchreest/matchscrape/pkg/recovery"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

// Config holds all Session configuration.
type Config struct {
	// Page settings
	Navigate dom.NavigateOptions

	// Selector settings
	Catalog *selector.Catalog // nil uses the built-in catalog
	Weights selector.Weights
	Mining  bool

	// Extraction settings
	Metadata bool

	// Recovery settings
	Recovery recovery.Config

	// Persistence; nil disables history load and save
	Store history.Store

	// Instrumentation
	Metrics             *validate.Metrics
	ValidationObservers []validate.Observer
	RecoveryObservers   []recovery.Observer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Navigate: dom.DefaultNavigateOptions(),
		Weights:  selector.DefaultWeights(),
		Mining:   true,
		Recovery: recovery.DefaultConfig(),
	}
}

// Option configures a Session.
type Option func(*Config)

// WithNavigateOptions sets the timeout and settle delay for the first load.
func WithNavigateOptions(opts dom.NavigateOptions) Option {
	return func(c *Config) {
		c.Navigate = opts
	}
}

// WithCatalog starts the session from catalog instead of the built-in one.
func WithCatalog(catalog *selector.Catalog) Option {
	return func(c *Config) {
		c.Catalog = catalog
	}
}

// WithWeights sets the candidate scoring weights.
func WithWeights(w selector.Weights) Option {
	return func(c *Config) {
		c.Weights = w
	}
}

// WithMining enables or disables mining the page for new candidates when
// every catalog entry for a category misses.
func WithMining(enabled bool) Option {
	return func(c *Config) {
		c.Mining = enabled
	}
}

// WithMetadata attaches diagnostic metadata to every record.
func WithMetadata(enabled bool) Option {
	return func(c *Config) {
		c.Metadata = enabled
	}
}

// WithRecoveryConfig sets the recovery loop configuration.
func WithRecoveryConfig(cfg recovery.Config) Option {
	return func(c *Config) {
		c.Recovery = cfg
	}
}

// WithHistoryStore loads learned selectors from store on Open and writes
// them back on SaveHistory.
func WithHistoryStore(store history.Store) Option {
	return func(c *Config) {
		c.Store = store
	}
}

// WithMetrics shares a metrics collector across sessions.
func WithMetrics(m *validate.Metrics) Option {
	return func(c *Config) {
		c.Metrics = m
	}
}

// WithValidationObserver registers an observer for every selector check.
func WithValidationObserver(o validate.Observer) Option {
	return func(c *Config) {
		c.ValidationObservers = append(c.ValidationObservers, o)
	}
}

// WithRecoveryObserver registers an observer for strategy invocations and
// finished recovery runs.
func WithRecoveryObserver(o recovery.Observer) Option {
	return func(c *Config) {
		c.RecoveryObservers = append(c.RecoveryObservers, o)
	}
}
