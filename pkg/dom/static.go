package dom

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/matchscrape/internal/logger"
)

// StaticConfig holds configuration for the static page.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Static is a Page that fetches server-rendered HTML with Colly. It does
// not execute scripts, so geometry is unknown and client-rendered
// content is missing.
type Static struct {
	config StaticConfig

	mu  sync.Mutex
	url string
	doc *Document
}

// NewStatic creates a new static page.
func NewStatic(cfg StaticConfig) *Static {
	def := DefaultStaticConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &Static{config: cfg}
}

// Navigate fetches url and parses the response body.
func (s *Static) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	doc, err := s.fetch(ctx, url, opts.Timeout)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.url = url
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// Reload fetches the current URL again.
func (s *Static) Reload(ctx context.Context, opts NavigateOptions) error {
	s.mu.Lock()
	url := s.url
	s.mu.Unlock()
	if url == "" {
		return ErrNotLoaded
	}
	return s.Navigate(ctx, url, opts)
}

func (s *Static) fetch(ctx context.Context, url string, timeout time.Duration) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Debug("static fetch starting", "url", url)

	// Colly refuses to revisit a URL, so every fetch gets its own collector.
	c := colly.NewCollector(colly.UserAgent(s.config.UserAgent))
	if timeout == 0 {
		timeout = s.config.Timeout
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	c.SetRequestTimeout(timeout)

	if len(s.config.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range s.config.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", r.Headers.Get("Content-Type"),
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch error (status %d): %w", status, err)
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to visit URL: %w", err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return NewDocumentFromString(string(body))
}

// Wait blocks for d or until ctx is done.
func (s *Static) Wait(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Evaluate runs fn against the last fetched document.
func (s *Static) Evaluate(ctx context.Context, fn QueryFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	doc := s.doc
	s.mu.Unlock()
	if doc == nil {
		return ErrNotLoaded
	}
	return fn(doc)
}

// Close releases resources.
func (s *Static) Close() error { return nil }

// Type returns the page type.
func (s *Static) Type() string { return "static" }
