// Package dom defines the document capability the extraction core runs on.
// A Page is a live document session (a browser tab, a fetched page or an
// in-memory fixture); Evaluate hands a read-only Document to a query
// function and returns whatever it produced.
package dom

import (
	"context"
	"errors"
	"time"
)

// Page is the browser-automation primitive consumed by the core.
type Page interface {
	// Navigate loads url and waits for the document to settle.
	Navigate(ctx context.Context, url string, opts NavigateOptions) error

	// Reload re-fetches the current document.
	Reload(ctx context.Context, opts NavigateOptions) error

	// Wait blocks for d or until ctx is done.
	Wait(ctx context.Context, d time.Duration) error

	// Evaluate runs fn against the current document.
	Evaluate(ctx context.Context, fn QueryFunc) error

	// Close releases any resources (browser tabs, etc.).
	Close() error

	// Type returns a string identifying the page type (e.g., "memory", "dynamic").
	Type() string
}

// QueryFunc runs against a snapshot of the live document.
type QueryFunc func(doc *Document) error

// NavigateOptions controls navigation and reload behavior.
type NavigateOptions struct {
	Timeout time.Duration // Upper bound for load + network idle
	Settle  time.Duration // Additional wait after load
}

// DefaultNavigateOptions mirrors the timings the target site needs.
func DefaultNavigateOptions() NavigateOptions {
	return NavigateOptions{
		Timeout: 60 * time.Second,
		Settle:  5 * time.Second,
	}
}

// Error types for distinguishing failure reasons.
var (
	// ErrInvalidSelector indicates a pattern that is not valid CSS.
	ErrInvalidSelector = errors.New("invalid selector")
	// ErrNotLoaded indicates Evaluate or Reload was called before Navigate.
	ErrNotLoaded = errors.New("no document loaded")
	// ErrTimeout indicates a navigation or evaluation deadline expired.
	ErrTimeout = errors.New("page operation timed out")
)

// Sleep waits for d unless ctx finishes first. It is the wait shared by
// Page implementations and the recovery loop.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
