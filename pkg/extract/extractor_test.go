package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/matchscrape/internal/fixture"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/selector"
)

var matchesSet = selector.ResolvedSet{
	selector.Card:        `li[class*="MatchCard"]`,
	selector.TeamName:    `[class*="TeamName"]`,
	selector.KickoffTime: `time`,
	selector.Score:       `[class*="score"]`,
	selector.Status:      `[class*="status"]`,
	selector.Competition: `[class*="SectionHeader"]`,
}

func mustDoc(t *testing.T, html string) *dom.Document {
	t.Helper()
	doc, err := dom.NewDocumentFromString(html)
	require.NoError(t, err)
	return doc
}

func TestExtract_Matches(t *testing.T) {
	page, err := dom.NewMemory(fixture.Matches())
	require.NoError(t, err)

	records, err := New().Extract(context.Background(), page, matchesSet)
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, Record{
		HomeTeam: "Flamengo", AwayTeam: "Palmeiras",
		KickoffTime: "16:00", Status: "Fim de jogo",
		HomeScore: "2", AwayScore: "1",
		Competition: "Campeonato Brasileiro", Tier: "Série A",
	}, records[0])

	assert.Equal(t, "Ao vivo", records[1].Status)
	assert.Equal(t, []string{"Grêmio", "Internacional"}, records[2].Teams())
	assert.Empty(t, records[2].HomeScore)
	assert.Equal(t, "Copa do Brasil", records[3].Competition)
	assert.Equal(t, "Semifinal", records[3].Tier)
	assert.Equal(t, "Atlético-MG", records[4].AwayTeam)
}

func TestExtract_ResolvedAgainstFixture(t *testing.T) {
	doc := mustDoc(t, fixture.Matches())
	res := selector.NewResolver(selector.DefaultCatalog()).ResolveDocument(doc)

	records := New().ExtractDocument(doc, res.Selectors)
	require.Len(t, records, 5)
	assert.Equal(t, "Flamengo", records[0].HomeTeam)
	assert.Equal(t, "Palmeiras", records[0].AwayTeam)
}

func TestExtract_Metadata(t *testing.T) {
	doc := mustDoc(t, fixture.Matches())
	records := New(WithMetadata(true)).ExtractDocument(doc, matchesSet)
	require.Len(t, records, 5)

	meta := records[1].Meta
	require.NotNil(t, meta)
	assert.Equal(t, 1, meta.CardIndex)
	assert.Equal(t, matchesSet, meta.Selectors)
	assert.Equal(t, "Corinthians 1\nSantos 1\n18:30 Ao vivo", meta.RawText)
	assert.Equal(t, FromSelector, meta.Sources["teams"])
}

func TestExtract_FallbackCards(t *testing.T) {
	doc := mustDoc(t, fixture.Fallback())

	ex := New(WithMetadata(true))
	cards, fromSelector := ex.Cards(doc, selector.ResolvedSet{selector.Card: "li.MatchCard"})
	assert.False(t, fromSelector)
	require.Len(t, cards, 2)

	records := ex.ExtractDocument(doc, selector.ResolvedSet{})
	require.Len(t, records, 2)

	assert.Equal(t, "Bahia", records[0].HomeTeam)
	assert.Equal(t, "Vitória", records[0].AwayTeam)
	assert.Equal(t, "20:00", records[0].KickoffTime)
	assert.Equal(t, FromText, records[0].Meta.Sources["teams"])

	assert.Equal(t, "Sport", records[1].HomeTeam)
	assert.Equal(t, "Náutico", records[1].AwayTeam)
	assert.Equal(t, "3", records[1].HomeScore)
	assert.Equal(t, "0", records[1].AwayScore)
	assert.Equal(t, "Fim de jogo", records[1].Status)
	assert.Empty(t, records[1].Competition)
}

func TestExtract_FallbackRespectsGeometry(t *testing.T) {
	doc := mustDoc(t, `<html><body>
	<div class="game-row" data-ms-box="150x40"><div>Bahia</div><div>Vitória</div></div>
	</body></html>`)
	assert.Empty(t, New().ExtractDocument(doc, selector.ResolvedSet{}))
}

func TestExtract_FallbackWithoutGeometry(t *testing.T) {
	doc := mustDoc(t, `<html><body>
	<article class="match"><p>Bahia</p><p>Vitória</p><p>20:00</p></article>
	</body></html>`)
	records := New().ExtractDocument(doc, selector.ResolvedSet{})
	require.Len(t, records, 1)
	assert.Equal(t, "Bahia", records[0].HomeTeam)
}

func TestExtract_NeverEmitsUnknownPair(t *testing.T) {
	doc := mustDoc(t, `<html><body><ul>
	<li class="MatchCard"><div>12</div><div>16:00</div><div>Ao vivo</div></li>
	<li class="MatchCard"><div>Bahia</div><div>16:00</div></li>
	</ul></body></html>`)

	records := New().ExtractDocument(doc, selector.ResolvedSet{selector.Card: "li.MatchCard"})
	require.Len(t, records, 1)
	for _, r := range records {
		assert.True(t, r.HasTeam())
	}
	assert.Equal(t, "Bahia", records[0].HomeTeam)
	assert.Equal(t, UnknownTeam, records[0].AwayTeam)
}

func TestExtract_SelectorThenText(t *testing.T) {
	doc := mustDoc(t, `<html><body>
	<li class="MatchCard"><span class="TeamName">Bahia</span><span class="TeamName">Sport</span><div>2 x 1</div><div>Intervalo</div><div>17:45</div></li>
	</body></html>`)
	set := selector.ResolvedSet{
		selector.Card:     "li.MatchCard",
		selector.TeamName: ".TeamName",
		selector.Score:    ".does-not-exist",
	}
	records := New(WithMetadata(true)).ExtractDocument(doc, set)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "Bahia", r.HomeTeam)
	assert.Equal(t, "2", r.HomeScore)
	assert.Equal(t, "1", r.AwayScore)
	assert.Equal(t, "Intervalo", r.Status)
	assert.Equal(t, "17:45", r.KickoffTime)
	assert.Equal(t, FromText, r.Meta.Sources["score"])
}

func TestExtract_StatusWordInsideTeamName(t *testing.T) {
	doc := mustDoc(t, `<html><body><ul>
	<li class="MatchCard"><div>Liverpool</div><div>Arsenal</div><div>16:00</div></li>
	<li class="MatchCard"><div>Liverpool</div><div>Everton</div><div>Live</div></li>
	</ul></body></html>`)

	records := New().ExtractDocument(doc, selector.ResolvedSet{selector.Card: "li.MatchCard"})
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Liverpool", "Arsenal"}, records[0].Teams())
	assert.Empty(t, records[0].Status)
	assert.Equal(t, []string{"Liverpool", "Everton"}, records[1].Teams())
	assert.Equal(t, "Live", records[1].Status)
}

func TestExtract_FallbackKeepsPerTeamBlocksTogether(t *testing.T) {
	doc := mustDoc(t, `<html><body><div class="MatchList">
	<div class="SimpleMatchCard">
	  <div class="SimpleMatchCardTeam_team"><div class="SimpleMatchCardTeam_name">Corinthians</div><div class="SimpleMatchCardTeam_score">2</div></div>
	  <div class="SimpleMatchCardTeam_team"><div class="SimpleMatchCardTeam_name">Palmeiras</div><div class="SimpleMatchCardTeam_score">1</div></div>
	</div>
	<div class="SimpleMatchCard">
	  <div class="SimpleMatchCardTeam_team"><div class="SimpleMatchCardTeam_name">Flamengo FC</div><div class="SimpleMatchCardTeam_score">0</div></div>
	  <div class="SimpleMatchCardTeam_team"><div class="SimpleMatchCardTeam_name">Botafogo FR</div><div class="SimpleMatchCardTeam_score">0</div></div>
	  <div>21:30</div>
	</div>
	</div></body></html>`)

	records := New().ExtractDocument(doc, selector.ResolvedSet{})
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Corinthians", "Palmeiras"}, records[0].Teams())
	assert.Equal(t, "2", records[0].HomeScore)
	assert.Equal(t, "1", records[0].AwayScore)
	assert.Equal(t, []string{"Flamengo FC", "Botafogo FR"}, records[1].Teams())
	assert.Equal(t, "21:30", records[1].KickoffTime)
}

func TestExtract_SingleSelectorTeamKept(t *testing.T) {
	doc := mustDoc(t, `<html><body>
	<li class="MatchCard"><div class="TeamName">Bahia</div><div>Bahia</div><div>Vitória</div><div>20:00</div></li>
	</body></html>`)
	set := selector.ResolvedSet{
		selector.Card:     "li.MatchCard",
		selector.TeamName: ".TeamName",
	}

	records := New(WithMetadata(true)).ExtractDocument(doc, set)
	require.Len(t, records, 1)
	r := records[0]
	assert.Equal(t, "Bahia", r.HomeTeam)
	assert.Equal(t, "Vitória", r.AwayTeam)
	assert.Equal(t, FromSelector, r.Meta.Sources["teams"])
	assert.Equal(t, FromText, r.Meta.Sources["away_team"])
}

// cancelOnEvaluate cancels the caller's context once a query has started.
type cancelOnEvaluate struct {
	*dom.Memory
	cancel context.CancelFunc
}

func (p cancelOnEvaluate) Evaluate(_ context.Context, fn dom.QueryFunc) error {
	return p.Memory.Evaluate(context.Background(), func(doc *dom.Document) error {
		p.cancel()
		return fn(doc)
	})
}

func TestExtract_CancelledMidScan(t *testing.T) {
	for name, set := range map[string]selector.ResolvedSet{
		"selector": matchesSet,
		"scan":     {},
	} {
		t.Run(name, func(t *testing.T) {
			mem, err := dom.NewMemory(fixture.Matches())
			require.NoError(t, err)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			records, err := New().Extract(ctx, cancelOnEvaluate{Memory: mem, cancel: cancel}, set)
			assert.ErrorIs(t, err, context.Canceled)
			assert.Empty(t, records)
		})
	}
}

func TestHeuristics(t *testing.T) {
	h, a := scoreFromText("Bahia\n1\nSport\n0")
	assert.Equal(t, "1", h)
	assert.Equal(t, "0", a)

	h, a = teamsFromText("16:00\n2 - 1\nFim de jogo\nBahia\n3\nSport")
	assert.Equal(t, "Bahia", h)
	assert.Equal(t, "Sport", a)

	h, a = teamsFromText("Liverpool\nLive\nOliveirense")
	assert.Equal(t, "Liverpool", h)
	assert.Equal(t, "Oliveirense", a)

	assert.Equal(t, "Sport", otherTeam("Bahia\nSport", "Bahia"))
	assert.Empty(t, otherTeam("Bahia", "Bahia"))

	assert.True(t, IsCaption("Segunda-feira"))
	assert.True(t, IsCaption("Domingo, 19/10"))
	assert.True(t, IsCaption("Os jogos de hoje"))
	assert.False(t, IsCaption("Copa do Brasil"))
	assert.Equal(t, "ab", truncate("abc", 2))
}
