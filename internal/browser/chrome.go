// Package browser provides the chromedp-backed live page used against the
// real site. One headless tab is kept open for the page's lifetime so a
// reload hits the same browser session.
package browser

import (
	"os/exec"
	"time"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
)

// Config holds configuration for the browser page.
type Config struct {
	UserAgent   string
	ChromePath  string // empty searches the usual install locations
	Headless    bool
	Width       int
	Height      int
	IdleTimeout time.Duration // cap on the network-idle wait after load
	Screenshots bool          // save a PNG to the temp dir when a navigation fails
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   dom.DefaultUserAgent,
		Headless:    true,
		Width:       1920,
		Height:      1080,
		IdleTimeout: 30 * time.Second,
	}
}

// Common Chrome/Chromium binary names across different systems
var chromeBinaryNames = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"chrome",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	"/Applications/Chromium.app/Contents/MacOS/Chromium",
	"/usr/bin/google-chrome-stable",
	"/usr/bin/chromium",
	"/snap/bin/chromium",
	`C:\Program Files\Google\Chrome\Application\chrome.exe`,
}

// FindChromePath searches PATH and common install locations for a Chrome
// or Chromium binary. Returns empty string if none is found.
func FindChromePath() string {
	for _, name := range chromeBinaryNames {
		if path, err := exec.LookPath(name); err == nil {
			logger.Debug("found Chrome binary", "name", name, "path", path)
			return path
		}
	}
	logger.Warn("no Chrome binary found - dynamic fetch mode may not work")
	return ""
}
