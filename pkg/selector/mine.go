package selector

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
)

// maxMined caps how many synthesized patterns a single mining pass adds.
const maxMined = 25

var (
	clockRe     = regexp.MustCompile(`\d{1,2}:\d{2}`)
	exactClock  = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	digitsRe    = regexp.MustCompile(`^\d+$`)
	headingTags = map[string]bool{"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true, "header": true}
)

// StatusPhrases are the labels the site uses for match state.
var StatusPhrases = []string{
	"Ao vivo", "Fim de jogo", "Intervalo", "Adiado", "Cancelado",
	"Live", "Full time", "Half time", "Postponed", "Cancelled",
}

// statusRe matches any status phrase as whole words. Go's \b is ASCII
// only, so word edges are spelled out over Unicode letters and digits.
var statusRe = func() *regexp.Regexp {
	quoted := make([]string, len(StatusPhrases))
	for i, p := range StatusPhrases {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(` + strings.Join(quoted, "|") + `)(?:[^\p{L}\p{N}]|$)`)
}()

// MatchStatus returns the status phrase found in text as a whole word,
// compared case-insensitively, or "".
func MatchStatus(text string) string {
	m := statusRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	for _, p := range StatusPhrases {
		if strings.EqualFold(p, m[1]) {
			return p
		}
	}
	return m[1]
}

// IsStatus reports whether text, once trimmed, is nothing but a status
// phrase.
func IsStatus(text string) bool {
	t := strings.TrimSpace(text)
	for _, p := range StatusPhrases {
		if strings.EqualFold(t, p) {
			return true
		}
	}
	return false
}

// checkEvery is how many elements a scan visits between context checks.
const checkEvery = 256

// element is the view of a DOM element the mining predicates work on.
type element struct {
	sel   *goquery.Selection
	tag   string
	class string // lower-cased
}

func newElement(s *goquery.Selection) element {
	return element{
		sel:   s,
		tag:   dom.TagName(s),
		class: strings.ToLower(dom.ClassName(s)),
	}
}

// shortText is the element's text when it runs to at most limit runes.
func (e element) shortText(limit int) (string, bool) {
	t, ok := dom.ShortText(e.sel, limit)
	return strings.TrimSpace(t), ok
}

func (e element) classHas(subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(e.class, s) {
			return true
		}
	}
	return false
}

var predicates = map[Category]func(element) bool{
	Card: func(e element) bool {
		return e.classHas("match", "card", "game") &&
			(e.tag == "li" || e.tag == "div" || e.tag == "article") &&
			dom.BoxOf(e.sel).Exceeds(200, 50)
	},
	TeamName: func(e element) bool {
		if !e.classHas("team", "name") {
			return false
		}
		t, ok := e.shortText(49)
		return ok && utf8.RuneCountInString(t) >= 2 && !clockRe.MatchString(t)
	},
	KickoffTime: func(e element) bool {
		if e.tag == "time" {
			return true
		}
		t, ok := e.shortText(5)
		return ok && exactClock.MatchString(t)
	},
	Score: func(e element) bool {
		if e.classHas("score", "placar") {
			return true
		}
		t, ok := e.shortText(16)
		return ok && digitsRe.MatchString(t)
	},
	Status: func(e element) bool {
		if e.classHas("status", "live") {
			return true
		}
		// Text matches are limited to leaf-sized text so that page
		// containers holding a status somewhere deep are not picked.
		t, ok := e.shortText(40)
		return ok && MatchStatus(t) != ""
	},
	Competition: func(e element) bool {
		return e.classHas("title", "header", "competition", "league") &&
			(headingTags[e.tag] || e.classHas("title")) &&
			utf8.RuneCountInString(strings.TrimSpace(dom.InnerText(e.sel))) > 5
	},
}

// Mine scans the page for elements that look like cat and returns a
// pattern synthesized from the first one, or "" when nothing qualifies.
// Every synthesized pattern is added to the catalog first.
func (r *Resolver) Mine(ctx context.Context, p dom.Page, cat Category) (string, error) {
	var found string
	err := p.Evaluate(ctx, func(doc *dom.Document) error {
		var err error
		found, err = r.mine(ctx, doc, cat)
		return err
	})
	return found, err
}

// MineDocument is Mine over an already captured document.
func (r *Resolver) MineDocument(doc *dom.Document, cat Category) string {
	found, _ := r.mine(context.Background(), doc, cat)
	return found
}

func (r *Resolver) mine(ctx context.Context, doc *dom.Document, cat Category) (string, error) {
	mustValid(cat)
	pred := predicates[cat]

	var (
		patterns []string
		err      error
	)
	seen := map[string]bool{}
	doc.Elements().EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i%checkEvery == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}
		if !pred(newElement(s)) {
			return true
		}
		p := Synthesize(s)
		if p != "" && !seen[p] {
			seen[p] = true
			patterns = append(patterns, p)
		}
		return len(patterns) < maxMined
	})
	if err != nil {
		return "", err
	}

	if len(patterns) == 0 {
		logger.Debug("mining found nothing", "category", cat)
		return "", nil
	}
	added := r.catalog.AddCandidates(cat, patterns...)
	logger.Debug("mined candidates",
		"category", cat,
		"selector", patterns[0],
		"found", len(patterns),
		"new", added)
	return patterns[0], nil
}

// Synthesize builds a pattern for the first element of s: its id, else up
// to two of its classes, else its tag. Tokens that are not valid CSS
// identifiers are skipped.
func Synthesize(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		if p := "#" + id; valid(p) {
			return p
		}
	}
	var classes []string
	for _, c := range dom.ClassList(s) {
		if valid("." + c) {
			classes = append(classes, c)
		}
		if len(classes) == 2 {
			break
		}
	}
	if len(classes) > 0 {
		return "." + strings.Join(classes, ".")
	}
	return dom.TagName(s)
}

func valid(pattern string) bool {
	_, err := dom.Compile(pattern)
	return err == nil
}
