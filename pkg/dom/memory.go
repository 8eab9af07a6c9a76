package dom

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Memory is a Page over an in-memory HTML document. It backs offline
// replay of saved pages and lets tests change the markup mid-session to
// simulate site drift.
type Memory struct {
	mu      sync.Mutex
	html    string
	doc     *Document
	url     string
	loads   int
	reloads int

	// NavigateErr and ReloadErr, when set, are returned by the
	// corresponding operations instead of re-parsing the document.
	NavigateErr error
	ReloadErr   error
}

// NewMemory returns a page already holding html.
func NewMemory(html string) (*Memory, error) {
	m := &Memory{}
	if err := m.SetHTML(html); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile returns a Memory page holding the contents of a saved page.
func LoadFile(path string) (*Memory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	m, err := NewMemory(string(b))
	if err != nil {
		return nil, err
	}
	m.url = "file://" + path
	return m, nil
}

// SetHTML replaces the live document.
func (m *Memory) SetHTML(html string) error {
	doc, err := NewDocumentFromString(html)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.html = html
	m.doc = doc
	m.mu.Unlock()
	return nil
}

// Navigate records url and re-parses the held markup.
func (m *Memory) Navigate(ctx context.Context, url string, opts NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.NavigateErr != nil {
		return m.NavigateErr
	}
	m.mu.Lock()
	m.url = url
	m.loads++
	html := m.html
	m.mu.Unlock()
	if err := m.SetHTML(html); err != nil {
		return err
	}
	return m.Wait(ctx, opts.Settle)
}

// Reload re-parses the held markup.
func (m *Memory) Reload(ctx context.Context, opts NavigateOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.ReloadErr != nil {
		return m.ReloadErr
	}
	m.mu.Lock()
	if m.doc == nil {
		m.mu.Unlock()
		return ErrNotLoaded
	}
	m.reloads++
	html := m.html
	m.mu.Unlock()
	if err := m.SetHTML(html); err != nil {
		return err
	}
	return m.Wait(ctx, opts.Settle)
}

// Wait blocks for d or until ctx is done.
func (m *Memory) Wait(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Evaluate runs fn against the current document.
func (m *Memory) Evaluate(ctx context.Context, fn QueryFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	doc := m.doc
	m.mu.Unlock()
	if doc == nil {
		return ErrNotLoaded
	}
	return fn(doc)
}

// URL returns the last navigated URL.
func (m *Memory) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Reloads returns how many times Reload succeeded.
func (m *Memory) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Type returns the page type.
func (m *Memory) Type() string { return "memory" }
