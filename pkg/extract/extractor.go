package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/selector"
)

const (
	// headingFallback locates competition headings when no competition
	// selector is resolved.
	headingFallback = `h1, h2, h3, h4, [class*="title"]`
	tierPattern     = `[class*="subtitle"]`
	rawTextLimit    = 200

	// checkEvery is how many elements a scan visits between context checks.
	checkEvery = 256
)

// Config holds extractor settings.
type Config struct {
	MinCardWidth  float64 // fallback cards must render wider than this
	MinCardHeight float64 // and taller than this
	MinCardText   int     // and carry more text than this (runes)
	Metadata      bool    // attach Metadata to every record
}

// DefaultConfig returns the standard card thresholds.
func DefaultConfig() Config {
	return Config{MinCardWidth: 200, MinCardHeight: 50, MinCardText: 10}
}

// Option configures an Extractor.
type Option func(*Config)

// WithMetadata attaches diagnostic metadata to records.
func WithMetadata(enabled bool) Option {
	return func(c *Config) { c.Metadata = enabled }
}

// WithCardThresholds overrides the fallback card size and text limits.
func WithCardThresholds(w, h float64, text int) Option {
	return func(c *Config) {
		c.MinCardWidth, c.MinCardHeight, c.MinCardText = w, h, text
	}
}

// Extractor produces match records from a page.
type Extractor struct {
	config Config
}

// New returns an Extractor.
func New(opts ...Option) *Extractor {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Extractor{config: cfg}
}

// Extract reads every card on the page using set.
func (e *Extractor) Extract(ctx context.Context, p dom.Page, set selector.ResolvedSet) ([]Record, error) {
	var out []Record
	err := p.Evaluate(ctx, func(doc *dom.Document) error {
		var err error
		out, err = e.extract(ctx, doc, set)
		return err
	})
	return out, err
}

// ExtractDocument is Extract over an already captured document. Records
// without any team name are dropped.
func (e *Extractor) ExtractDocument(doc *dom.Document, set selector.ResolvedSet) []Record {
	records, _ := e.extract(context.Background(), doc, set)
	return records
}

func (e *Extractor) extract(ctx context.Context, doc *dom.Document, set selector.ResolvedSet) ([]Record, error) {
	cards, fromSelector, err := e.cards(ctx, doc, set)
	if err != nil {
		return nil, err
	}
	logger.Debug("cards located", "count", len(cards), "from_selector", fromSelector)

	var records []Record
	for i, card := range cards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := e.record(card, set)
		if !rec.HasTeam() {
			logger.Debug("card skipped, no team name", "card_index", i)
			continue
		}
		if rec.Meta != nil {
			rec.Meta.CardIndex = i
		}
		records = append(records, rec)
	}
	return records, nil
}

// Cards returns the card elements of doc. The resolved card selector is
// used when it matches; otherwise cards are found by class name, rendered
// size and text length. The second result reports which path was taken.
func (e *Extractor) Cards(doc *dom.Document, set selector.ResolvedSet) ([]*goquery.Selection, bool) {
	cards, fromSelector, _ := e.cards(context.Background(), doc, set)
	return cards, fromSelector
}

func (e *Extractor) cards(ctx context.Context, doc *dom.Document, set selector.ResolvedSet) ([]*goquery.Selection, bool, error) {
	if p, ok := set.Get(selector.Card); ok {
		s, err := doc.Query(p)
		if err == nil && s.Length() > 0 {
			return each(s), true, nil
		}
		logger.Debug("card selector yielded nothing, scanning", "selector", p, "error", err)
	}
	cards, err := e.scanCards(ctx, doc)
	return cards, false, err
}

func (e *Extractor) scanCards(ctx context.Context, doc *dom.Document) ([]*goquery.Selection, error) {
	var (
		nodes []*html.Node
		err   error
	)
	isCand := map[*html.Node]bool{}
	doc.Elements().EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i%checkEvery == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}
		switch dom.TagName(s) {
		case "li", "div", "article":
		default:
			return true
		}
		class := strings.ToLower(dom.ClassName(s))
		if !strings.Contains(class, "match") && !strings.Contains(class, "card") && !strings.Contains(class, "game") {
			return true
		}
		if !dom.BoxOf(s).Exceeds(e.config.MinCardWidth, e.config.MinCardHeight) {
			return true
		}
		if utf8.RuneCountInString(dom.Text(s)) <= e.config.MinCardText {
			return true
		}
		nodes = append(nodes, s.Nodes[0])
		isCand[s.Nodes[0]] = true
		return true
	})
	if err != nil {
		return nil, err
	}

	// A node holding two or more complete cards is a list, not a card;
	// neither it nor anything around it can be one. Candidates holding
	// only part of a match, such as one side's name and score, leave
	// their parent a card.
	children := map[*html.Node]int{}
	for _, n := range nodes {
		if n.Parent != nil && wholeCard(n) {
			children[n.Parent]++
		}
	}
	excluded := map[*html.Node]bool{}
	for parent, n := range children {
		if n < 2 {
			continue
		}
		for a := parent; a != nil; a = a.Parent {
			excluded[a] = true
		}
	}

	var out []*goquery.Selection
	for _, n := range nodes {
		if excluded[n] || hasCandidateAncestor(n, isCand, excluded) {
			continue
		}
		out = append(out, goquery.NewDocumentFromNode(n).Selection)
	}
	return out, nil
}

// wholeCard reports whether n's text names both sides of a match and
// carries a kickoff time or a score.
func wholeCard(n *html.Node) bool {
	text := dom.InnerText(goquery.NewDocumentFromNode(n).Selection)
	if _, away := teamsFromText(text); away == "" {
		return false
	}
	home, _ := scoreFromText(text)
	return home != "" || kickoffFromText(text) != ""
}

func hasCandidateAncestor(n *html.Node, isCand, excluded map[*html.Node]bool) bool {
	for a := n.Parent; a != nil; a = a.Parent {
		if isCand[a] && !excluded[a] {
			return true
		}
	}
	return false
}

func each(s *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, s.Length())
	s.Each(func(_ int, c *goquery.Selection) { out = append(out, c) })
	return out
}

func (e *Extractor) record(card *goquery.Selection, set selector.ResolvedSet) Record {
	text := dom.InnerText(card)
	src := map[string]Source{}

	rec := Record{HomeTeam: UnknownTeam, AwayTeam: UnknownTeam}

	names := texts(card, set, selector.TeamName)
	if len(names) >= 2 && (names[0] != "" || names[1] != "") {
		rec.HomeTeam, rec.AwayTeam = orUnknown(names[0]), orUnknown(names[1])
		src["teams"] = FromSelector
	} else if home := first(names); home != "" {
		rec.HomeTeam = home
		src["teams"] = FromSelector
		if away := otherTeam(text, home); away != "" {
			rec.AwayTeam = away
			src["away_team"] = FromText
		}
	} else if h, a := teamsFromText(text); h != "" {
		rec.HomeTeam, rec.AwayTeam = orUnknown(h), orUnknown(a)
		src["teams"] = FromText
	}

	if t := first(texts(card, set, selector.KickoffTime)); t != "" {
		rec.KickoffTime = t
		src["kickoff_time"] = FromSelector
	} else if t := kickoffFromText(text); t != "" {
		rec.KickoffTime = t
		src["kickoff_time"] = FromText
	}

	if sc := texts(card, set, selector.Score); len(sc) >= 2 && sc[0] != "" && sc[1] != "" {
		rec.HomeScore, rec.AwayScore = sc[0], sc[1]
		src["score"] = FromSelector
	} else if h, a := scoreFromText(text); h != "" {
		rec.HomeScore, rec.AwayScore = h, a
		src["score"] = FromText
	}

	if st := first(texts(card, set, selector.Status)); st != "" {
		rec.Status = st
		src["status"] = FromSelector
	} else if st := selector.MatchStatus(text); st != "" {
		rec.Status = st
		src["status"] = FromText
	}

	rec.Competition, rec.Tier = sectionHeadings(card, set)

	if e.config.Metadata {
		rec.Meta = &Metadata{
			Selectors: set.Clone(),
			RawText:   truncate(text, rawTextLimit),
			Sources:   src,
		}
	}
	return rec
}

// texts returns the trimmed text of every element matching cat's
// resolved selector inside card.
func texts(card *goquery.Selection, set selector.ResolvedSet, cat selector.Category) []string {
	p, ok := set.Get(cat)
	if !ok {
		return nil
	}
	s, err := dom.QueryIn(card, p)
	if err != nil {
		return nil
	}
	out := make([]string, 0, s.Length())
	s.Each(func(_ int, el *goquery.Selection) {
		out = append(out, dom.Text(el))
	})
	return out
}

// sectionHeadings reads the competition and tier from the headings of
// the section enclosing card, skipping weekday and date captions.
func sectionHeadings(card *goquery.Selection, set selector.ResolvedSet) (competition, tier string) {
	section := card.Closest("section")
	if section.Length() == 0 {
		return "", ""
	}

	pattern, ok := set.Get(selector.Competition)
	if !ok {
		pattern = headingFallback
	}
	competition = firstHeading(section, pattern, "")
	if competition == "" && ok {
		competition = firstHeading(section, headingFallback, "")
	}
	tier = firstHeading(section, tierPattern, competition)
	return competition, tier
}

func firstHeading(section *goquery.Selection, pattern, exclude string) string {
	s, err := dom.QueryIn(section, pattern)
	if err != nil {
		return ""
	}
	var found string
	s.EachWithBreak(func(_ int, h *goquery.Selection) bool {
		t := dom.Text(h)
		if t == "" || t == exclude || IsCaption(t) {
			return true
		}
		found = t
		return false
	})
	return found
}

func first(v []string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownTeam
	}
	return s
}
