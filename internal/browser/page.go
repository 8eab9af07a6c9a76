package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
)

// annotateScript stamps every body element with its rendered size so the
// snapshot taken afterwards carries geometry.
var annotateScript = fmt.Sprintf(`(() => {
	if (!document.body) return 0;
	const all = document.body.querySelectorAll('*');
	for (const el of all) {
		const r = el.getBoundingClientRect();
		el.setAttribute(%q, Math.round(r.width) + 'x' + Math.round(r.height));
	}
	return all.length;
})()`, dom.BoxAttr)

// Page is a dom.Page driving a headless Chrome tab.
type Page struct {
	config Config

	mu          sync.Mutex
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	url         string
	started     bool
	loaded      bool
}

var _ dom.Page = (*Page)(nil)

// New creates a page. The browser process starts on the first navigation.
func New(cfg Config) *Page {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		cfg.Width, cfg.Height = DefaultConfig().Width, DefaultConfig().Height
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.Width, cfg.Height),
		chromedp.UserAgent(cfg.UserAgent),
	)
	chromePath := cfg.ChromePath
	if chromePath == "" {
		chromePath = FindChromePath()
	}
	if chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	logger.Debug("browser page created", "headless", cfg.Headless, "chrome", chromePath)
	return &Page{
		config:      cfg,
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
	}
}

// run executes actions in the persistent tab. The tab context outlives
// every call, so cancellation of ctx is forwarded with AfterFunc.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(p.tabCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(p.tabCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", dom.ErrTimeout, err)
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// untilIdle wraps a loading action and waits for the new document to
// report network idle.
func (p *Page) untilIdle(load chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var started atomic.Bool
		idle := make(chan struct{}, 1)
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev any) {
			e, ok := ev.(*page.EventLifecycleEvent)
			if !ok {
				return
			}
			switch e.Name {
			case "init":
				started.Store(true)
			case "networkIdle":
				if started.Load() {
					select {
					case idle <- struct{}{}:
					default:
					}
				}
			}
		})

		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return fmt.Errorf("enable lifecycle events: %w", err)
		}
		if err := load.Do(ctx); err != nil {
			return err
		}

		wait := p.config.IdleTimeout
		if wait <= 0 {
			wait = DefaultConfig().IdleTimeout
		}
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-idle:
			return nil
		case <-t.C:
			logger.Debug("network idle not reached, continuing", "waited", wait)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// Navigate loads url, waits for network idle, then waits opts.Settle.
func (p *Page) Navigate(ctx context.Context, url string, opts dom.NavigateOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		// The first Run allocates the browser; it must not use a context
		// that gets cancelled, or the browser goes with it.
		if err := chromedp.Run(p.tabCtx); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		p.started = true
	}

	start := time.Now()
	logger.Debug("browser navigate", "url", url, "timeout", opts.Timeout)
	if err := p.run(ctx, opts.Timeout, p.untilIdle(chromedp.Navigate(url))); err != nil {
		p.screenshot()
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	p.url = url
	p.loaded = true
	logger.Debug("browser navigate complete", "url", url, "duration", time.Since(start))
	return dom.Sleep(ctx, opts.Settle)
}

// Reload reloads the current document the same way Navigate loads it.
func (p *Page) Reload(ctx context.Context, opts dom.NavigateOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		return dom.ErrNotLoaded
	}
	if err := p.run(ctx, opts.Timeout, p.untilIdle(chromedp.Reload())); err != nil {
		p.screenshot()
		return fmt.Errorf("reload: %w", err)
	}
	return dom.Sleep(ctx, opts.Settle)
}

// Wait blocks for d or until ctx is done.
func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	return dom.Sleep(ctx, d)
}

// Evaluate annotates the live document with geometry, snapshots its HTML
// and runs fn against the snapshot.
func (p *Page) Evaluate(ctx context.Context, fn dom.QueryFunc) error {
	p.mu.Lock()
	if !p.loaded {
		p.mu.Unlock()
		return dom.ErrNotLoaded
	}
	var annotated int
	var html string
	err := p.run(ctx, 0,
		chromedp.Evaluate(annotateScript, &annotated),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	doc, err := dom.NewDocumentFromString(html)
	if err != nil {
		return err
	}
	logger.Debug("browser snapshot", "elements", annotated, "bytes", len(html))
	return fn(doc)
}

// URL returns the last navigated address.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// screenshot saves a debug capture when enabled. Callers hold mu.
func (p *Page) screenshot() {
	if !p.config.Screenshots {
		return
	}
	ctx, cancel := context.WithTimeout(p.tabCtx, 5*time.Second)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return
	}
	path := filepath.Join(os.TempDir(), fmt.Sprintf("matchscrape-debug-%d.png", time.Now().UnixNano()))
	if err := os.WriteFile(path, buf, 0o644); err == nil {
		logger.Debug("debug screenshot saved", "path", path)
	}
}

// Close closes the tab and the browser.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelTab()
	p.cancelAlloc()
	p.loaded = false
	return nil
}

// Type returns the page type.
func (p *Page) Type() string {
	return "dynamic"
}
