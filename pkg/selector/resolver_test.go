package selector

import (
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/matchscrape/internal/fixture"
	"github.com/jmylchreest/matchscrape/pkg/dom"
)

func TestWeights_Score(t *testing.T) {
	w := DefaultWeights()
	tests := []struct {
		pattern string
		count   int
		want    float64
	}{
		{"li", 4, 4},
		{`li[class*="MatchCard"]`, 4, 9},
		{`ul > li`, 4, 7},
		{`.Team_name__x7`, 2, 12},
		{`ul[class*="List"] > li.Card__a`, 1, 19},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Score(tt.pattern, tt.count))
		})
	}
}

func TestResolver_Resolve_Matches(t *testing.T) {
	page, err := dom.NewMemory(fixture.Matches())
	require.NoError(t, err)

	r := NewResolver(DefaultCatalog())
	res, err := r.Resolve(context.Background(), page)
	require.NoError(t, err)

	assert.Empty(t, res.Unresolved)
	assert.Equal(t, ResolvedSet{
		Card:        `li[class*="MatchCard"]`,
		TeamName:    `[class*="TeamName"]`,
		KickoffTime: `time`,
		Score:       `[class*="score"]`,
		Status:      `[class*="status"]`,
		Competition: `[class*="SectionHeader"]`,
	}, res.Selectors)

	// The winner moves to the front of the trial order.
	assert.Equal(t, `li[class*="MatchCard"]`, r.Catalog().Patterns(Card)[0])
	assert.Len(t, r.History(), 1)
}

func TestResolver_Resolve_EveryMatchingCategoryResolves(t *testing.T) {
	doc, err := dom.NewDocumentFromString(fixture.Matches())
	require.NoError(t, err)

	c := DefaultCatalog()
	r := NewResolver(c)
	res := r.ResolveDocument(doc)

	for _, cat := range Categories {
		matched := false
		for _, p := range c.Patterns(cat) {
			if n, err := doc.Count(p); err == nil && n > 0 {
				matched = true
				break
			}
		}
		_, ok := res.Selectors.Get(cat)
		assert.Equal(t, matched, ok, "category %s", cat)
	}
}

func TestResolver_Resolve_InvalidCandidateSkipped(t *testing.T) {
	doc, err := dom.NewDocumentFromString(fixture.Matches())
	require.NoError(t, err)

	c := NewCatalog()
	c.AddCandidates(Card, `li[class*=`, "li.MatchCard")
	res := NewResolver(c).ResolveDocument(doc)

	assert.Equal(t, "li.MatchCard", res.Selectors[Card])
	assert.Contains(t, res.Unresolved, TeamName)
}

func TestResolver_Resolve_TiesKeepCatalogOrder(t *testing.T) {
	doc, err := dom.NewDocumentFromString(fixture.Matches())
	require.NoError(t, err)

	c := NewCatalog()
	c.AddCandidates(KickoffTime, "time.KickoffTime", "time")
	res := NewResolver(c).ResolveDocument(doc)

	assert.Equal(t, "time.KickoffTime", res.Selectors[KickoffTime])
}

func TestResolver_Resolve_NotLoaded(t *testing.T) {
	_, err := NewResolver(DefaultCatalog()).Resolve(context.Background(), &dom.Memory{})
	assert.ErrorIs(t, err, dom.ErrNotLoaded)
}

func TestResolver_Mine(t *testing.T) {
	html := `<html><body>
	<div id="app">
	  <div class="Fixture_row__k2" data-ms-box="600x80">
	    <span class="Club_name__9x other">Bahia</span>
	    <span class="Club_name__9x other">Vitória</span>
	    <b>20:00</b>
	    <i>3</i>
	    <em class="Pill">Ao vivo</em>
	    <h2 class="Block_header">Copa do Nordeste</h2>
	  </div>
	</div></body></html>`
	page, err := dom.NewMemory(html)
	require.NoError(t, err)
	ctx := context.Background()

	c := NewCatalog()
	r := NewResolver(c)

	tests := []struct {
		cat  Category
		want string
	}{
		{TeamName, ".Club_name__9x.other"},
		{KickoffTime, "b"},
		{Score, "i"},
		{Status, ".Pill"},
		{Competition, ".Block_header"},
	}
	for _, tt := range tests {
		t.Run(string(tt.cat), func(t *testing.T) {
			before := c.Len(tt.cat)
			got, err := r.Mine(ctx, page, tt.cat)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, c.Contains(tt.cat, got))
			assert.GreaterOrEqual(t, c.Len(tt.cat), before)
		})
	}
}

func TestResolver_Mine_NothingFound(t *testing.T) {
	doc, err := dom.NewDocumentFromString(fixture.Bare())
	require.NoError(t, err)

	c := NewCatalog()
	got := NewResolver(c).MineDocument(doc, Card)
	assert.Empty(t, got)
	assert.Equal(t, 0, c.Len(Card))
}

func TestResolver_Mine_StopsWhenCancelled(t *testing.T) {
	doc, err := dom.NewDocumentFromString(fixture.Matches())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCatalog()
	got, err := NewResolver(c).mine(ctx, doc, Status)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, got)
	assert.Equal(t, 0, c.Len(Status))

	_, err = NewResolver(DefaultCatalog(), WithMining(true)).resolve(ctx, doc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMatchStatus(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Ao vivo", "Ao vivo"},
		{"AO VIVO 45'", "Ao vivo"},
		{"18:30 Fim de jogo", "Fim de jogo"},
		{"Half time, 1-0", "Half time"},
		{"live", "Live"},
		{"Liverpool", ""},
		{"Oliveira", ""},
		{"Delivered", ""},
		{"Intervalos", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchStatus(tt.text))
		})
	}
}

func TestIsStatus(t *testing.T) {
	assert.True(t, IsStatus(" Fim de jogo "))
	assert.True(t, IsStatus("LIVE"))
	assert.False(t, IsStatus("Liverpool"))
	assert.False(t, IsStatus("Live Oak FC"))
}

func TestResolver_Resolve_MineOnMiss(t *testing.T) {
	doc, err := dom.NewDocumentFromString(fixture.Fallback())
	require.NoError(t, err)

	c := NewCatalog()
	res := NewResolver(c, WithMining(true)).ResolveDocument(doc)

	assert.Equal(t, ".game-list", res.Mined[Card])
	assert.Equal(t, ".game-list", res.Selectors[Card])
	assert.True(t, c.Contains(Card, ".game-row"))
}

func TestSynthesize(t *testing.T) {
	doc, err := dom.NewDocumentFromString(`<html><body>
	<div id="main"></div>
	<div class="a b c"></div>
	<div class="9bad ok"></div>
	<section></section>
	</body></html>`)
	require.NoError(t, err)

	var got []string
	doc.Elements().Each(func(_ int, s *goquery.Selection) {
		got = append(got, Synthesize(s))
	})
	assert.Equal(t, []string{"#main", ".a.b", ".ok", "section"}, got)
}
