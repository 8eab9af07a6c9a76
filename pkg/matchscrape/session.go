package matchscrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/extract"
	"github.com/jmylchreest/matchscrape/pkg/history"
	"github.com/jmylchreest/matchscrape/pkg/recovery"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

// Session owns one page and everything learned about it: the catalog, the
// resolved selectors, the validation and recovery history.
type Session struct {
	id        string
	startedAt time.Time
	url       string
	config    Config

	page      dom.Page
	resolver  *selector.Resolver
	extractor *extract.Extractor
	validator *validate.Validator
	engine    *recovery.Engine
	selectors selector.ResolvedSet
}

// New creates a Session on page. The recovery configuration is validated
// here; a malformed one is returned as an error wrapping
// recovery.ErrInvalidConfig.
func New(page dom.Page, opts ...Option) (*Session, error) {
	if page == nil {
		return nil, errors.New("page is required")
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = selector.DefaultCatalog()
	}

	vopts := []validate.Option{validate.WithTimeout(cfg.Recovery.ValidationTimeout)}
	if cfg.Metrics != nil {
		vopts = append(vopts, validate.WithMetrics(cfg.Metrics))
	}
	for _, o := range cfg.ValidationObservers {
		vopts = append(vopts, validate.WithObserver(o))
	}
	v := validate.New(vopts...)

	eopts := make([]recovery.EngineOption, 0, len(cfg.RecoveryObservers))
	for _, o := range cfg.RecoveryObservers {
		eopts = append(eopts, recovery.WithObserver(o))
	}
	engine, err := recovery.NewEngine(cfg.Recovery, v, eopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create recovery engine: %w", err)
	}

	return &Session{
		id:        uuid.NewString(),
		startedAt: time.Now(),
		config:    cfg,
		page:      page,
		resolver:  selector.NewResolver(catalog, selector.WithWeights(cfg.Weights), selector.WithMining(cfg.Mining)),
		extractor: extract.New(extract.WithMetadata(cfg.Metadata)),
		validator: v,
		engine:    engine,
		selectors: selector.ResolvedSet{},
	}, nil
}

// ID returns the session identifier stamped on history and reports.
func (s *Session) ID() string { return s.id }

// URL returns the address passed to Open.
func (s *Session) URL() string { return s.url }

// Page returns the underlying page.
func (s *Session) Page() dom.Page { return s.page }

// Config returns the session configuration.
func (s *Session) Config() Config { return s.config }

// Catalog returns the session's selector catalog.
func (s *Session) Catalog() *selector.Catalog { return s.resolver.Catalog() }

// Selectors returns a copy of the current resolved selectors.
func (s *Session) Selectors() selector.ResolvedSet { return s.selectors.Clone() }

// Metrics returns the current counters.
func (s *Session) Metrics() validate.MetricsSnapshot { return s.validator.Metrics().Snapshot() }

// LoadHistory seeds the catalog and the resolved selectors from the most
// recent history record. A missing history is not an error.
func (s *Session) LoadHistory() error {
	if s.config.Store == nil {
		return nil
	}
	rec, err := s.config.Store.Load()
	if errors.Is(err, history.ErrNoHistory) {
		logger.Debug("no selector history yet")
		return nil
	}
	if err != nil {
		return err
	}
	history.Apply(rec, s.Catalog(), s.selectors)
	logger.Info("selector history applied",
		"session_id", rec.SessionID,
		"updated_at", rec.UpdatedAt,
		"selectors", len(rec.Selectors))
	return nil
}

// Open loads history and navigates the page to url.
func (s *Session) Open(ctx context.Context, url string) error {
	if err := s.LoadHistory(); err != nil {
		logger.Warn("ignoring unreadable selector history", "error", err)
	}
	s.url = url
	logger.Info("opening page", "url", url, "page", s.page.Type())
	if err := s.page.Navigate(ctx, url, s.config.Navigate); err != nil {
		return fmt.Errorf("navigate failed: %w", err)
	}
	return nil
}

// ResolveSelectors resolves every category against the current document
// and merges the outcome into the session's selectors. Categories nothing
// matched keep their previous selector, if any.
func (s *Session) ResolveSelectors(ctx context.Context) (selector.ResolvedSet, error) {
	res, err := s.resolver.Resolve(ctx, s.page)
	if err != nil {
		return nil, fmt.Errorf("resolve failed: %w", err)
	}
	changed := s.selectors.Merge(res.Selectors)
	if len(res.Unresolved) > 0 {
		logger.Warn("categories unresolved", "categories", res.Unresolved)
	}
	logger.Debug("selectors resolved", "changed", changed, "mined", len(res.Mined))
	return s.selectors.Clone(), nil
}

// ExtractRecords extracts match records using the current selectors.
func (s *Session) ExtractRecords(ctx context.Context) ([]extract.Record, error) {
	records, err := s.extractor.Extract(ctx, s.page, s.selectors)
	if err != nil {
		return nil, fmt.Errorf("extraction failed: %w", err)
	}
	return records, nil
}

// Validate checks the current selectors without attempting recovery.
func (s *Session) Validate(ctx context.Context) validate.Report {
	return s.validator.ValidateAll(ctx, s.page, s.selectors)
}

// RunWithRecovery validates the current selectors and runs the recovery
// strategies until they are healthy or the attempt budget is spent.
func (s *Session) RunWithRecovery(ctx context.Context) recovery.Result {
	return s.engine.Run(ctx, &recovery.Session{
		Page:      s.page,
		URL:       s.url,
		Resolver:  s.resolver,
		Selectors: s.selectors,
	})
}

// ScrapeResult is the outcome of a full Scrape pass.
type ScrapeResult struct {
	Records   []extract.Record
	Recovery  recovery.Result
	Recovered bool // records were re-extracted after recovery strategies ran
	Duration  time.Duration
}

// Scrape runs the whole pipeline on the open page: resolve, extract,
// validate and, when validation fails, recover and extract again.
// An exhausted recovery is reported in the result, not as an error.
func (s *Session) Scrape(ctx context.Context) (*ScrapeResult, error) {
	start := time.Now()
	if _, err := s.ResolveSelectors(ctx); err != nil {
		return nil, err
	}
	records, err := s.ExtractRecords(ctx)
	if err != nil {
		return nil, err
	}

	result := &ScrapeResult{Records: records}
	result.Recovery = s.RunWithRecovery(ctx)
	if len(result.Recovery.History) > 0 {
		// Strategies may have reloaded the page or replaced selectors.
		again, err := s.ExtractRecords(ctx)
		if err != nil {
			return nil, err
		}
		result.Records = again
		result.Recovered = true
	}
	result.Duration = time.Since(start)

	logger.Info("scrape finished",
		"records", len(result.Records),
		"healthy", result.Recovery.Succeeded,
		"attempts", result.Recovery.Attempts,
		"recovered", result.Recovered,
		"duration", result.Duration)
	return result, nil
}

// HistoryRecord captures what the session has learned so far.
func (s *Session) HistoryRecord() *history.Record {
	return &history.Record{
		SessionID:         s.id,
		Selectors:         s.selectors.Clone(),
		Catalog:           s.Catalog().Snapshot(),
		Resolutions:       s.resolver.History(),
		ValidationHistory: s.validator.History(),
		Attempts:          s.engine.History(),
	}
}

// SaveHistory writes the session state to the history store, if any.
func (s *Session) SaveHistory() error {
	if s.config.Store == nil {
		return nil
	}
	return s.config.Store.Save(s.HistoryRecord())
}

// Close releases the page.
func (s *Session) Close() error {
	return s.page.Close()
}
