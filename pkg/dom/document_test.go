package dom

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<html><head><title>t</title><style>.x{}</style></head><body>
<section class="Day">
  <h2 class="SectionHeader_title">Campeonato Brasileiro</h2>
  <ul class="fixtures">
    <li class="MatchCard big" data-ms-box="600x80">
      <div class="TeamRow"><span class="TeamName">Flamengo</span> <span class="score">2</span></div>
      <div class="TeamRow"><span class="TeamName">Palmeiras</span> <span class="score">1</span></div>
      <script>var x = 1;</script>
      <span hidden>secret</span>
      <time class="KickoffTime">16:00</time>
    </li>
  </ul>
</section>
</body></html>`

func mustDoc(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := NewDocumentFromString(s)
	require.NoError(t, err)
	return doc
}

func TestDocument_Query(t *testing.T) {
	doc := mustDoc(t, sample)

	n, err := doc.Count(`li[class*="MatchCard"]`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = doc.Count(`span.TeamName`)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = doc.Count(`li:has([class*="Team"])`)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDocument_Query_InvalidSelector(t *testing.T) {
	doc := mustDoc(t, sample)

	_, err := doc.Query(`li[class*=`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSelector))

	_, err = doc.Query("   ")
	assert.True(t, errors.Is(err, ErrInvalidSelector))
}

func TestDocument_Elements_SkipHead(t *testing.T) {
	doc := mustDoc(t, sample)
	doc.Elements().Each(func(_ int, s *goquery.Selection) {
		assert.NotEqual(t, "title", TagName(s))
	})
}

func TestInnerText(t *testing.T) {
	doc := mustDoc(t, sample)
	card, err := doc.Query("li.MatchCard")
	require.NoError(t, err)

	assert.Equal(t, "Flamengo 2\nPalmeiras 1\n16:00", InnerText(card))
	assert.Equal(t, "Flamengo 2 Palmeiras 1 16:00", Text(card))
}

func TestInnerText_Empty(t *testing.T) {
	doc := mustDoc(t, sample)
	none, err := doc.Query(".missing")
	require.NoError(t, err)
	assert.Equal(t, "", InnerText(none))
}

func TestShortText(t *testing.T) {
	doc := mustDoc(t, sample)
	card, _ := doc.Query("li.MatchCard")
	kickoff, _ := doc.Query("time")

	got, ok := ShortText(kickoff, 5)
	assert.True(t, ok)
	assert.Equal(t, "16:00", got)

	_, ok = ShortText(card, 10)
	assert.False(t, ok)

	got, ok = ShortText(card, 100)
	assert.True(t, ok)
	assert.Equal(t, Text(card), got)
}

func TestClassList(t *testing.T) {
	doc := mustDoc(t, sample)
	card, _ := doc.Query("li")
	assert.Equal(t, "MatchCard big", ClassName(card))
	assert.Equal(t, []string{"MatchCard", "big"}, ClassList(card))
	assert.Equal(t, "li", TagName(card))
}

func TestBoxOf(t *testing.T) {
	doc := mustDoc(t, sample)
	card, _ := doc.Query("li")
	box := BoxOf(card)
	assert.True(t, box.Known)
	assert.Equal(t, 600.0, box.Width)
	assert.Equal(t, 80.0, box.Height)
	assert.True(t, box.Exceeds(200, 50))
	assert.False(t, box.Exceeds(200, 100))

	row, _ := doc.Query(".TeamRow")
	unknown := BoxOf(row)
	assert.False(t, unknown.Known)
	assert.True(t, unknown.Exceeds(200, 50), "unknown geometry is never filtered")
}

func TestMemory_DriftAndReload(t *testing.T) {
	ctx := context.Background()
	page, err := NewMemory(sample)
	require.NoError(t, err)

	var before int
	require.NoError(t, page.Evaluate(ctx, func(doc *Document) error {
		before, err = doc.Count("li.MatchCard")
		return err
	}))
	assert.Equal(t, 1, before)

	require.NoError(t, page.SetHTML(`<html><body><li class="MatchCardV2">x</li></body></html>`))
	require.NoError(t, page.Reload(ctx, NavigateOptions{}))
	assert.Equal(t, 1, page.Reloads())

	var after int
	require.NoError(t, page.Evaluate(ctx, func(doc *Document) error {
		after, err = doc.Count("li.MatchCard")
		return err
	}))
	assert.Equal(t, 0, after)
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	page := &Memory{}
	assert.ErrorIs(t, page.Evaluate(ctx, func(*Document) error { return nil }), ErrNotLoaded)
	assert.ErrorIs(t, page.Reload(ctx, NavigateOptions{}), ErrNotLoaded)

	boom := errors.New("boom")
	page.ReloadErr = boom
	assert.ErrorIs(t, page.Reload(ctx, NavigateOptions{}), boom)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, page.Wait(cancelled, 0), context.Canceled)
}

func TestStatic_NavigateAndReload(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	ctx := context.Background()
	page := NewStatic(StaticConfig{})
	assert.ErrorIs(t, page.Reload(ctx, NavigateOptions{}), ErrNotLoaded)

	require.NoError(t, page.Navigate(ctx, srv.URL, NavigateOptions{}))
	require.NoError(t, page.Reload(ctx, NavigateOptions{}))
	assert.Equal(t, 2, hits)

	var n int
	require.NoError(t, page.Evaluate(ctx, func(doc *Document) error {
		var err error
		n, err = doc.Count("span.TeamName")
		return err
	}))
	assert.Equal(t, 2, n)
	assert.Equal(t, "static", page.Type())
}
