package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/jmylchreest/matchscrape/internal/browser"
	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/history"
	"github.com/jmylchreest/matchscrape/pkg/matchscrape"
	"github.com/jmylchreest/matchscrape/pkg/recovery"
)

// Fetch modes.
const (
	modeDynamic = "dynamic"
	modeStatic  = "static"
	modeAuto    = "auto"
	modeFile    = "file"
)

// recoveryConfig reads the recovery.* keys and validates them.
func recoveryConfig(v *viper.Viper) (recovery.Config, error) {
	cfg := recovery.DefaultConfig()
	cfg.MaxAttempts = v.GetInt("recovery.max_attempts")
	cfg.AttemptDelay = v.GetDuration("recovery.attempt_delay")
	cfg.ValidationTimeout = v.GetDuration("recovery.validation_timeout")
	cfg.NavigationTimeout = v.GetDuration("recovery.navigation_timeout")
	cfg.ReloadSettle = v.GetDuration("recovery.reload_settle")
	cfg.MaxDOMDepth = v.GetInt("recovery.max_dom_depth")
	cfg.MajorityThreshold = v.GetFloat64("recovery.majority_threshold")

	strategies, err := recovery.ParseStrategies(v.GetStringSlice("recovery.strategies"))
	if err != nil {
		return cfg, err
	}
	cfg.Strategies = strategies
	return cfg, cfg.Validate()
}

// pageSource says where a session's document comes from.
type pageSource struct {
	Mode    string
	URL     string
	File    string
	Timeout time.Duration
}

// sourceFromViper reads the page flags. A --file path forces file mode.
func sourceFromViper(v *viper.Viper, file string) pageSource {
	src := pageSource{
		Mode:    v.GetString("fetch_mode"),
		URL:     v.GetString("url"),
		File:    file,
		Timeout: v.GetDuration("timeout"),
	}
	if file != "" {
		src.Mode = modeFile
	}
	return src
}

// newPage creates the page for src and returns the URL to open.
func newPage(src pageSource) (dom.Page, string, error) {
	switch src.Mode {
	case modeDynamic, "":
		return browser.New(browser.DefaultConfig()), src.URL, nil
	case modeStatic:
		return dom.NewStatic(dom.StaticConfig{Timeout: src.Timeout}), src.URL, nil
	case modeAuto:
		return browser.NewAuto(dom.StaticConfig{Timeout: src.Timeout}, browser.DefaultConfig()), src.URL, nil
	case modeFile:
		if src.File == "" {
			return nil, "", fmt.Errorf("fetch mode %q needs --file", modeFile)
		}
		abs, err := filepath.Abs(src.File)
		if err != nil {
			return nil, "", err
		}
		page, err := dom.LoadFile(abs)
		if err != nil {
			return nil, "", err
		}
		return page, page.URL(), nil
	default:
		return nil, "", fmt.Errorf("unknown fetch mode: %s (use dynamic, static, auto or file)", src.Mode)
	}
}

// sessionOptions builds the options shared by every command.
func sessionOptions(v *viper.Viper, src pageSource) ([]matchscrape.Option, error) {
	rc, err := recoveryConfig(v)
	if err != nil {
		return nil, err
	}
	nav := dom.DefaultNavigateOptions()
	if src.Timeout > 0 {
		nav.Timeout = src.Timeout
	}
	if src.Mode == modeStatic || src.Mode == modeFile {
		// Nothing renders after load.
		nav.Settle = 0
		rc.ReloadSettle = 0
	}
	opts := []matchscrape.Option{
		matchscrape.WithNavigateOptions(nav),
		matchscrape.WithRecoveryConfig(rc),
	}
	if dir := v.GetString("history_dir"); dir != "" {
		opts = append(opts, matchscrape.WithHistoryStore(history.NewFileStore(dir)))
	}
	return opts, nil
}

// openSession creates a session for src and navigates it. The caller
// closes the session.
func openSession(ctx context.Context, v *viper.Viper, src pageSource, extra ...matchscrape.Option) (*matchscrape.Session, error) {
	opts, err := sessionOptions(v, src)
	if err != nil {
		return nil, err
	}
	page, url, err := newPage(src)
	if err != nil {
		return nil, err
	}
	s, err := matchscrape.New(page, append(opts, extra...)...)
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	logger.Debug("session created", "session_id", s.ID(), "page", page.Type())
	if err := s.Open(ctx, url); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
