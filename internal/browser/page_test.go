package browser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/matchscrape/pkg/dom"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.Headless)
	assert.Equal(t, dom.DefaultUserAgent, cfg.UserAgent)
	assert.Positive(t, cfg.IdleTimeout)
}

func TestAnnotateScript(t *testing.T) {
	assert.True(t, strings.Contains(annotateScript, `"`+dom.BoxAttr+`"`))
	assert.Contains(t, annotateScript, "getBoundingClientRect")
}

// The browser is only started by Navigate, so these never launch Chrome.
func TestPage_NotLoaded(t *testing.T) {
	p := New(Config{ChromePath: "/nonexistent/chrome"})
	defer p.Close()

	ctx := context.Background()
	err := p.Evaluate(ctx, func(*dom.Document) error { return nil })
	require.ErrorIs(t, err, dom.ErrNotLoaded)
	require.ErrorIs(t, p.Reload(ctx, dom.DefaultNavigateOptions()), dom.ErrNotLoaded)
	assert.Equal(t, "dynamic", p.Type())
	assert.Empty(t, p.URL())
}
