package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/matchscrape/internal/fixture"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

var goodSet = selector.ResolvedSet{
	selector.Card:        `li[class*="MatchCard"]`,
	selector.TeamName:    `[class*="TeamName"]`,
	selector.KickoffTime: `time`,
	selector.Score:       `[class*="score"]`,
	selector.Status:      `[class*="status"]`,
	selector.Competition: `[class*="SectionHeader"]`,
}

func testConfig(strategies ...StrategyName) Config {
	cfg := DefaultConfig()
	cfg.AttemptDelay = 0
	cfg.ReloadSettle = 0
	cfg.NavigationTimeout = 5 * time.Second
	cfg.ValidationTimeout = 5 * time.Second
	if len(strategies) > 0 {
		cfg.Strategies = strategies
	}
	return cfg
}

func newSession(t *testing.T, html string, set selector.ResolvedSet) (*Session, *dom.Memory) {
	t.Helper()
	page, err := dom.NewMemory(html)
	require.NoError(t, err)
	return &Session{
		Page:      page,
		URL:       "https://example.test/jogos",
		Resolver:  selector.NewResolver(selector.DefaultCatalog()),
		Selectors: set.Clone(),
	}, page
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, validate.New(validate.WithTimeout(cfg.ValidationTimeout)))
	require.NoError(t, err)
	return e
}

// fakeStrategy reports a fixed outcome and counts its calls.
type fakeStrategy struct {
	name     StrategyName
	progress bool
	err      error
	calls    int
	fix      func(*Env)
}

func (f *fakeStrategy) Name() StrategyName { return f.name }

func (f *fakeStrategy) Attempt(_ context.Context, env *Env) (bool, error) {
	f.calls++
	if f.fix != nil {
		f.fix(env)
	}
	return f.progress, f.err
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxAttempts = 0
	cfg.Strategies = []StrategyName{ReloadPage, "pray"}
	cfg.MajorityThreshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "MaxAttempts must be at least 1")
	assert.Contains(t, err.Error(), "pray is not one of")
	assert.Contains(t, err.Error(), "MajorityThreshold")

	_, err = NewEngine(cfg, validate.New())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewStrategy(t *testing.T) {
	for _, name := range DefaultOrder {
		s, err := NewStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}
	_, err := NewStrategy("pray")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	names, err := ParseStrategies([]string{"reload-page", "analyze-dom-structure"})
	require.NoError(t, err)
	assert.Equal(t, []StrategyName{ReloadPage, AnalyzeDOM}, names)
	_, err = ParseStrategies([]string{"reload-page", "nope"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestRun_HealthyWithoutRecovery(t *testing.T) {
	s, _ := newSession(t, fixture.Matches(), goodSet)
	e := newEngine(t, testConfig())

	res := e.Run(context.Background(), s)
	assert.True(t, res.Succeeded)
	assert.Equal(t, Healthy, res.State)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.History)
	assert.Equal(t, 0, res.Metrics.SuccessfulRecoveries)
}

func TestRun_RenamedCardRecoveredByAlternatives(t *testing.T) {
	learned := goodSet.Clone()
	learned[selector.Card] = "li.MatchCard"
	s, page := newSession(t, fixture.Matches(), learned)
	s.Catalog().AddCandidates(selector.Card, "li.MatchCard")

	e := newEngine(t, testConfig(TryAlternatives, AnalyzeDOM))
	require.True(t, e.Validator().ValidateAll(context.Background(), page, s.Selectors).Healthy())

	require.NoError(t, page.SetHTML(fixture.MatchesRenamed()))
	report := e.Validator().ValidateAll(context.Background(), page, s.Selectors)
	assert.Equal(t, []selector.Category{selector.Card}, report.Failed)

	res := e.Run(context.Background(), s)
	require.True(t, res.Succeeded)
	require.Len(t, res.History, 1)
	assert.Equal(t, TryAlternatives, res.History[0].Strategy)
	assert.True(t, res.History[0].Succeeded)
	assert.Equal(t, `li[class*="MatchCard"]`, res.Selectors[selector.Card])
	assert.Equal(t, `li[class*="MatchCard"]`, s.Selectors[selector.Card])
	assert.Zero(t, res.Metrics.StrategyInvocations[string(AnalyzeDOM)])
	assert.Equal(t, 1, res.Metrics.SuccessfulRecoveries)
}

func TestRun_RenamedCardDefaultOrder(t *testing.T) {
	learned := goodSet.Clone()
	learned[selector.Card] = "li.MatchCard"
	s, _ := newSession(t, fixture.MatchesRenamed(), learned)

	res := newEngine(t, testConfig()).Run(context.Background(), s)
	require.True(t, res.Succeeded)
	require.Len(t, res.History, 2)
	assert.Equal(t, ReloadPage, res.History[0].Strategy)
	assert.Equal(t, RedetectSelectors, res.History[1].Strategy)
	assert.Zero(t, res.Metrics.StrategyInvocations[string(AnalyzeDOM)])
}

func TestRun_ExhaustedWhenEverythingFails(t *testing.T) {
	s, page := newSession(t, fixture.Bare(), nil)
	page.ReloadErr = errors.New("net::ERR_CONNECTION_RESET")

	cfg := testConfig()
	cfg.MaxAttempts = 3
	e := newEngine(t, cfg)

	res := e.Run(context.Background(), s)
	assert.False(t, res.Succeeded)
	assert.Equal(t, Exhausted, res.State)
	assert.Equal(t, 3, res.Attempts)
	require.Len(t, res.History, 3*len(DefaultOrder))

	for i, a := range res.History {
		assert.Equal(t, DefaultOrder[i%len(DefaultOrder)], a.Strategy)
		assert.Equal(t, i/len(DefaultOrder)+1, a.Attempt)
		assert.False(t, a.Succeeded)
	}
	assert.Equal(t, "net::ERR_CONNECTION_RESET", res.History[0].Error)
	for _, name := range DefaultOrder {
		assert.Equal(t, 3, res.Metrics.StrategyInvocations[string(name)])
	}
	assert.ElementsMatch(t, selector.Categories, res.Failed)
	assert.Len(t, e.History(), 3*len(DefaultOrder))
}

func TestRun_TerminatesForAnyStrategyBehaviour(t *testing.T) {
	for _, progress := range []bool{true, false} {
		s, _ := newSession(t, fixture.Bare(), nil)
		cfg := testConfig()
		cfg.MaxAttempts = 4
		e := newEngine(t, cfg)

		fakes := []*fakeStrategy{
			{name: "a", progress: progress},
			{name: "b", progress: progress, err: errors.New("boom")},
			{name: "c", progress: progress},
		}
		e.strategies = nil
		for _, f := range fakes {
			e.strategies = append(e.strategies, f)
		}

		res := e.Run(context.Background(), s)
		assert.False(t, res.Succeeded)
		assert.Len(t, res.History, cfg.MaxAttempts*len(fakes))
		for _, f := range fakes {
			assert.Equal(t, cfg.MaxAttempts, f.calls)
		}
	}
}

func TestRun_EarlyExitOnProgress(t *testing.T) {
	learned := goodSet.Clone()
	learned[selector.Card] = "li.Gone"
	s, _ := newSession(t, fixture.Matches(), learned)
	e := newEngine(t, testConfig())

	fixer := &fakeStrategy{name: "fixer", progress: true, fix: func(env *Env) {
		env.Selectors.Set(selector.Card, "li.MatchCard")
	}}
	after := &fakeStrategy{name: "after"}
	e.strategies = []Strategy{&fakeStrategy{name: "noop"}, fixer, after}

	res := e.Run(context.Background(), s)
	require.True(t, res.Succeeded)
	assert.Len(t, res.History, 2)
	assert.Equal(t, 0, after.calls)
}

func TestRun_Cancelled(t *testing.T) {
	s, _ := newSession(t, fixture.Bare(), nil)
	e := newEngine(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	first := &fakeStrategy{name: "first", fix: func(*Env) { cancel() }}
	e.strategies = []Strategy{first, &fakeStrategy{name: "second"}}

	res := e.Run(ctx, s)
	assert.False(t, res.Succeeded)
	assert.Equal(t, Exhausted, res.State)
	assert.Contains(t, res.Err, "cancelled")
	assert.Len(t, res.History, 1)
}

type recordingObserver struct {
	attempts []Attempt
	results  []Result
}

func (o *recordingObserver) OnAttempt(_ context.Context, a Attempt) { o.attempts = append(o.attempts, a) }
func (o *recordingObserver) OnFinish(_ context.Context, r Result)   { o.results = append(o.results, r) }

func TestRun_Observer(t *testing.T) {
	s, page := newSession(t, fixture.Bare(), nil)
	page.ReloadErr = errors.New("down")
	cfg := testConfig(ReloadPage)
	cfg.MaxAttempts = 2

	obs := &recordingObserver{}
	e, err := NewEngine(cfg, validate.New(), WithObserver(obs))
	require.NoError(t, err)

	e.Run(context.Background(), s)
	assert.Len(t, obs.attempts, 2)
	require.Len(t, obs.results, 1)
	assert.Equal(t, Exhausted, obs.results[0].State)
}

func env(s *Session, failing ...selector.Category) *Env {
	return &Env{Session: s, Failing: failing, Validator: validate.New(), Config: testConfig()}
}

func TestReloadPage_NavigatesWhenNothingLoaded(t *testing.T) {
	page := &dom.Memory{}
	s := &Session{Page: page, URL: "https://example.test", Resolver: selector.NewResolver(selector.NewCatalog())}
	ok, err := reloadPage{}.Attempt(context.Background(), env(s))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://example.test", page.URL())
}

func TestRedetectSelectors(t *testing.T) {
	s, _ := newSession(t, fixture.Matches(), nil)
	ok, err := redetectSelectors{}.Attempt(context.Background(), env(s))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, goodSet, s.Selectors)

	ok, err = redetectSelectors{}.Attempt(context.Background(), env(s))
	require.NoError(t, err)
	assert.False(t, ok, "nothing changed on the second pass")
}

func TestTryAlternatives_NoAlternative(t *testing.T) {
	s, _ := newSession(t, fixture.Bare(), selector.ResolvedSet{selector.Card: "li.Gone"})
	ok, err := tryAlternatives{}.Attempt(context.Background(), env(s, selector.Card))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "li.Gone", s.Selectors[selector.Card])
}

func TestTextHeuristics(t *testing.T) {
	html := `<html><body>
	<div class="Row"><span class="Club">Bahia</span><span class="Goal">2</span><span class="Club">Sport</span><span class="Goal">1</span><span class="Clock">16:00</span></div>
	<div class="Row"><span class="Club">Ceará</span><span class="Goal">0</span><span class="Club">Vitória</span><span class="Goal">0</span><span class="Clock">18:30</span></div>
	<h2 class="Heading">Copa do Nordeste</h2>
	</body></html>`
	s, _ := newSession(t, html, nil)

	ok, err := textHeuristics{}.Attempt(context.Background(), env(s))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, selector.ResolvedSet{
		selector.KickoffTime: ".Clock",
		selector.Score:       ".Goal",
		selector.TeamName:    ".Club",
		selector.Competition: ".Heading",
	}, s.Selectors)

	ok, err = textHeuristics{}.Attempt(context.Background(), env(s))
	require.NoError(t, err)
	assert.False(t, ok)
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

func TestTextHeuristics_StopsWhenCancelled(t *testing.T) {
	s, page := newSession(t, fixture.Matches(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Page = cancelOnEvaluate{Memory: page, cancel: cancel}

	ok, err := textHeuristics{}.Attempt(ctx, env(s))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Empty(t, s.Selectors)
}

func TestMajorityClass(t *testing.T) {
	assert.Equal(t, "Club", majorityClass([][]string{{"Club", "a"}, {"Club"}, {"Other"}}, 0.5))
	assert.Equal(t, "", majorityClass([][]string{{"aaaa"}, {"bbbb"}, {"cccc"}}, 0.5))
	assert.Equal(t, "", majorityClass([][]string{{"abc"}, {"abc"}}, 0.5), "short classes ignored")
	assert.Equal(t, "", majorityClass(nil, 0.5))
	assert.Equal(t, "first", majorityClass([][]string{{"first", "second"}, {"second", "first"}}, 0.5))
}

func TestAnalyzeDOM(t *testing.T) {
	s, _ := newSession(t, fixture.MatchesRenamed(), nil)

	ok, err := analyzeDOM{}.Attempt(context.Background(), env(s))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ".MatchCardV2", s.Selectors[selector.Card])
	assert.Equal(t, ".MatchCardV2", s.Catalog().Patterns(selector.Card)[0])
}

func TestAnalyzeDOM_DepthBound(t *testing.T) {
	s, _ := newSession(t, fixture.MatchesRenamed(), nil)
	e := env(s)
	e.Config.MaxDOMDepth = 1

	ok, err := analyzeDOM{}.Attempt(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, ok)

	e.Config.MaxDOMDepth = 2
	ok, err = analyzeDOM{}.Attempt(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, ok, "nested section roots restart the depth count")
}
