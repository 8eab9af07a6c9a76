package recovery

import (
	"context"
	"errors"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
	"github.com/jmylchreest/matchscrape/pkg/selector"
)

// reloadPage re-fetches the document and lets it settle.
type reloadPage struct{}

func (reloadPage) Name() StrategyName { return ReloadPage }

func (reloadPage) Attempt(ctx context.Context, env *Env) (bool, error) {
	opts := dom.NavigateOptions{Timeout: env.Config.NavigationTimeout, Settle: env.Config.ReloadSettle}
	ctx, cancel := context.WithTimeout(ctx, env.Config.NavigationTimeout+env.Config.ReloadSettle)
	defer cancel()

	err := env.Page.Reload(ctx, opts)
	if errors.Is(err, dom.ErrNotLoaded) && env.URL != "" {
		err = env.Page.Navigate(ctx, env.URL, opts)
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// redetectSelectors runs a full resolution and adopts whatever changed.
type redetectSelectors struct{}

func (redetectSelectors) Name() StrategyName { return RedetectSelectors }

func (redetectSelectors) Attempt(ctx context.Context, env *Env) (bool, error) {
	ctx, cancel := env.timeout(ctx)
	defer cancel()

	res, err := env.Resolver.Resolve(ctx, env.Page)
	if err != nil {
		return false, err
	}
	changed := env.Selectors.Merge(res.Selectors)
	if len(changed) > 0 {
		logger.Debug("re-detection changed selectors", "categories", changed)
	}
	return len(changed) > 0, nil
}

// tryAlternatives walks the catalog of each failing category for another
// candidate that validates.
type tryAlternatives struct{}

func (tryAlternatives) Name() StrategyName { return TryAlternatives }

func (tryAlternatives) Attempt(ctx context.Context, env *Env) (bool, error) {
	fixed := 0
	for _, cat := range env.Failing {
		current, _ := env.Selectors.Get(cat)
		alts := slices.DeleteFunc(env.Catalog().Patterns(cat), func(p string) bool { return p == current })
		if len(alts) == 0 {
			continue
		}
		if p, ok := env.Validator.FirstValid(ctx, env.Page, cat, alts); ok {
			env.Selectors.Set(cat, p)
			fixed++
			logger.Debug("alternative candidate adopted", "category", cat, "selector", p, "previous", current)
		}
	}
	return fixed > 0, nil
}

var (
	exactClockRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
	clockRe      = regexp.MustCompile(`\d{1,2}:\d{2}`)
	smallNumRe   = regexp.MustCompile(`^\d{1,2}$`)
	numberRe     = regexp.MustCompile(`^\d+$`)
	versusRe     = regexp.MustCompile(`(?i)\b(vs|x)\b`)
	headingRe    = regexp.MustCompile(`^h[1-6]$`)
)

// checkEvery is how many elements a scan visits between context checks.
const checkEvery = 256

// textHeuristics buckets short texts by what they look like and derives a
// selector per bucket from the classes most of its members share.
type textHeuristics struct{}

func (textHeuristics) Name() StrategyName { return TextHeuristics }

func (textHeuristics) Attempt(ctx context.Context, env *Env) (bool, error) {
	ctx, cancel := env.timeout(ctx)
	defer cancel()

	derived := map[selector.Category]string{}
	err := env.Page.Evaluate(ctx, func(doc *dom.Document) error {
		var err error
		buckets := map[selector.Category][][]string{}
		doc.Elements().EachWithBreak(func(i int, s *goquery.Selection) bool {
			if i%checkEvery == 0 {
				if err = ctx.Err(); err != nil {
					return false
				}
			}
			text, ok := dom.ShortText(s, 100)
			n := utf8.RuneCountInString(text)
			if !ok || n == 0 {
				return true
			}
			classes := dom.ClassList(s)
			switch {
			case exactClockRe.MatchString(text):
				buckets[selector.KickoffTime] = append(buckets[selector.KickoffTime], classes)
			case smallNumRe.MatchString(text):
				buckets[selector.Score] = append(buckets[selector.Score], classes)
			}
			if n > 2 && n < 50 && !clockRe.MatchString(text) && !numberRe.MatchString(text) && !versusRe.MatchString(text) {
				buckets[selector.TeamName] = append(buckets[selector.TeamName], classes)
			}
			if (headingRe.MatchString(dom.TagName(s)) || slices.ContainsFunc(classes, func(c string) bool {
				return strings.Contains(strings.ToLower(c), "title")
			})) && n > 5 {
				buckets[selector.Competition] = append(buckets[selector.Competition], classes)
			}
			return true
		})
		if err != nil {
			return err
		}
		for cat, members := range buckets {
			if c := majorityClass(members, env.Config.MajorityThreshold); c != "" {
				derived[cat] = "." + c
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	changed := 0
	for _, cat := range selector.Categories {
		p, ok := derived[cat]
		if !ok {
			continue
		}
		if env.Selectors.Set(cat, p) {
			changed++
			logger.Debug("text heuristics installed selector", "category", cat, "selector", p)
		}
	}
	return changed > 0, nil
}

// majorityClass returns the class longer than three characters carried by
// at least ceil(threshold × len(members)) members. Ties go to the class
// seen first. Classes that are not valid CSS identifiers are skipped.
func majorityClass(members [][]string, threshold float64) string {
	if len(members) == 0 {
		return ""
	}
	counts := map[string]int{}
	var order []string
	for _, classes := range members {
		seen := map[string]bool{}
		for _, c := range classes {
			if len(c) <= 3 || seen[c] {
				continue
			}
			seen[c] = true
			if counts[c] == 0 {
				order = append(order, c)
			}
			counts[c]++
		}
	}
	need := int(math.Ceil(float64(len(members)) * threshold))
	best, bestN := "", 0
	for _, c := range order {
		if counts[c] < need || counts[c] <= bestN {
			continue
		}
		if _, err := dom.Compile("." + c); err != nil {
			continue
		}
		best, bestN = c, counts[c]
	}
	return best
}

// containerPattern selects the roots the structural walk starts from.
const containerPattern = `main, section, div[class*="container"], div[class*="content"]`

// analyzeDOM walks container subtrees, bounded by depth, for the first
// element that looks like a match card and installs its class as the card
// selector.
type analyzeDOM struct{}

func (analyzeDOM) Name() StrategyName { return AnalyzeDOM }

func (analyzeDOM) Attempt(ctx context.Context, env *Env) (bool, error) {
	ctx, cancel := env.timeout(ctx)
	defer cancel()

	var found string
	err := env.Page.Evaluate(ctx, func(doc *dom.Document) error {
		roots, err := doc.Query(containerPattern)
		if err != nil {
			return err
		}
		found = findCardPattern(roots, env.Config.MaxDOMDepth)
		return nil
	})
	if err != nil || found == "" {
		return false, err
	}

	env.Catalog().AddCandidates(selector.Card, found)
	if !env.Selectors.Set(selector.Card, found) {
		return false, nil
	}
	logger.Debug("structure analysis installed card selector", "selector", found)
	return true, nil
}

type frame struct {
	node  *html.Node
	depth int
}

// findCardPattern searches each root in document order, depth first, with
// an explicit stack. Nodes deeper than maxDepth below their root are not
// visited. A node reached again through a nested root is only revisited
// when it is now shallower, so no node is expanded more than maxDepth+1
// times.
func findCardPattern(roots *goquery.Selection, maxDepth int) string {
	seenAt := map[*html.Node]int{}
	for _, root := range roots.Nodes {
		stack := []frame{{node: root}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.depth > maxDepth {
				continue
			}
			if d, ok := seenAt[f.node]; ok && d <= f.depth {
				continue
			}
			seenAt[f.node] = f.depth

			if p := cardPattern(f.node); p != "" {
				return p
			}
			var kids []*html.Node
			for c := f.node.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode {
					kids = append(kids, c)
				}
			}
			for i := len(kids) - 1; i >= 0; i-- {
				stack = append(stack, frame{node: kids[i], depth: f.depth + 1})
			}
		}
	}
	return ""
}

// cardPattern returns ".class" for a node that looks like a match card:
// a match/card/game class, at least two child elements, and text naming
// two sides or a kickoff time.
func cardPattern(n *html.Node) string {
	s := goquery.NewDocumentFromNode(n).Selection
	classes := dom.ClassList(s)
	lower := strings.ToLower(strings.Join(classes, " "))
	if !strings.Contains(lower, "match") && !strings.Contains(lower, "card") && !strings.Contains(lower, "game") {
		return ""
	}
	if s.Children().Length() < 2 {
		return ""
	}
	text := dom.Text(s)
	if !versusRe.MatchString(text) && !clockRe.MatchString(text) {
		return ""
	}
	for _, c := range classes {
		if _, err := dom.Compile("." + c); err == nil {
			return "." + c
		}
	}
	return ""
}
