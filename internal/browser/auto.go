package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
)

// spaRoots are mount points client-side frameworks fill in after load.
var spaRoots = []string{"#root", "#app", "#__next", "#__nuxt", "app-root"}

// spaMarkers are attributes only present before a framework has booted.
const spaMarkers = "[data-reactroot], [ng-app], [v-cloak]"

var loadingHints = []string{"loading", "please wait", "carregando", "enable javascript", "javascript required"}

var noscriptHints = []string{"javascript", "enable", "required", "browser", "ative"}

// minStaticText is the body text length below which a page counts as a
// shell when it also shows a loading hint.
const minStaticText = 100

// NeedsScript reports whether doc looks like a page whose content is
// rendered client-side, and names the signal that decided it.
func NeedsScript(doc *dom.Document) (bool, string) {
	root := doc.Root()
	for _, sel := range spaRoots {
		if mount := root.Find(sel).First(); mount.Length() > 0 && mount.Children().Length() == 0 {
			return true, "empty " + sel
		}
	}
	if root.Find(spaMarkers).Length() > 0 {
		return true, "framework marker"
	}

	body := strings.ToLower(dom.InnerText(root.Find("body")))
	if len(body) < minStaticText {
		for _, hint := range loadingHints {
			if strings.Contains(body, hint) {
				return true, "loading text"
			}
		}
	}

	found := ""
	root.Find("noscript").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		// noscript content parses as raw text when scripting is assumed on.
		text := strings.ToLower(s.Text())
		for _, hint := range noscriptHints {
			if strings.Contains(text, hint) {
				found = "noscript warning"
				return false
			}
		}
		return true
	})
	return found != "", found
}

// Auto is a Page that starts with a plain HTTP fetch and switches to the
// browser for good once a fetched document needs scripts.
type Auto struct {
	static     *dom.Static
	newBrowser func() dom.Page

	mu      sync.Mutex
	browser dom.Page
	active  dom.Page
}

var _ dom.Page = (*Auto)(nil)

// NewAuto creates an auto page. Chrome only starts if a page needs it.
func NewAuto(static dom.StaticConfig, cfg Config) *Auto {
	return &Auto{
		static:     dom.NewStatic(static),
		newBrowser: func() dom.Page { return New(cfg) },
	}
}

func (a *Auto) current() dom.Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

func (a *Auto) useBrowser() dom.Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser == nil {
		a.browser = a.newBrowser()
	}
	a.active = a.browser
	return a.browser
}

// Navigate fetches url statically unless the browser is already in use,
// falling back to the browser when the fetch fails or the document is a
// client-rendered shell.
func (a *Auto) Navigate(ctx context.Context, url string, opts dom.NavigateOptions) error {
	if cur := a.current(); cur != nil && cur != dom.Page(a.static) {
		return cur.Navigate(ctx, url, opts)
	}

	err := a.static.Navigate(ctx, url, opts)
	if err == nil {
		var needs bool
		var reason string
		err = a.static.Evaluate(ctx, func(doc *dom.Document) error {
			needs, reason = NeedsScript(doc)
			return nil
		})
		if err == nil && !needs {
			a.mu.Lock()
			a.active = a.static
			a.mu.Unlock()
			return nil
		}
		if err == nil {
			logger.Info("page needs scripts, switching to browser", "url", url, "signal", reason)
		}
	}
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		logger.Info("static fetch failed, switching to browser", "url", url, "error", err)
	}
	return a.useBrowser().Navigate(ctx, url, opts)
}

// Reload reloads the active page.
func (a *Auto) Reload(ctx context.Context, opts dom.NavigateOptions) error {
	cur := a.current()
	if cur == nil {
		return dom.ErrNotLoaded
	}
	return cur.Reload(ctx, opts)
}

// Wait blocks for d or until ctx is done.
func (a *Auto) Wait(ctx context.Context, d time.Duration) error {
	return dom.Sleep(ctx, d)
}

// Evaluate runs fn against the active page.
func (a *Auto) Evaluate(ctx context.Context, fn dom.QueryFunc) error {
	cur := a.current()
	if cur == nil {
		return dom.ErrNotLoaded
	}
	return cur.Evaluate(ctx, fn)
}

// Close closes the browser if it was started.
func (a *Auto) Close() error {
	a.mu.Lock()
	b := a.browser
	a.browser, a.active = nil, nil
	a.mu.Unlock()
	if b != nil {
		return b.Close()
	}
	return a.static.Close()
}

// Type names the page in use, e.g. "auto/static".
func (a *Auto) Type() string {
	if cur := a.current(); cur != nil {
		return "auto/" + cur.Type()
	}
	return "auto"
}
