package selector

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/pkg/dom"
)

// Weights are the specificity bonuses added to a candidate's match count.
// Site-specific patterns outrank generic ones that match too broadly.
type Weights struct {
	HashedClass       float64 // pattern names a generated class (contains "__")
	AttributeContains float64 // pattern uses a substring attribute match ("*=")
	DirectChild       float64 // pattern uses the child combinator (">")
}

// DefaultWeights returns the standard bonuses.
func DefaultWeights() Weights {
	return Weights{HashedClass: 10, AttributeContains: 5, DirectChild: 3}
}

// Score rates a pattern that matched count elements.
func (w Weights) Score(pattern string, count int) float64 {
	s := float64(count)
	if strings.Contains(pattern, "__") {
		s += w.HashedClass
	}
	if strings.Contains(pattern, "*=") {
		s += w.AttributeContains
	}
	if strings.Contains(pattern, ">") {
		s += w.DirectChild
	}
	return s
}

// Resolution is the outcome of one resolve pass.
type Resolution struct {
	At         time.Time                `json:"timestamp"`
	Selectors  ResolvedSet              `json:"selectors"`
	Scores     map[Category][]Candidate `json:"scores,omitempty"`
	Mined      map[Category]string      `json:"mined,omitempty"`
	Unresolved []Category               `json:"unresolved,omitempty"`
}

// Resolver picks the best working candidate per category and feeds the
// outcome back into the catalog's trial order.
type Resolver struct {
	catalog    *Catalog
	weights    Weights
	mineOnMiss bool
	history    []Resolution
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithWeights overrides the scoring bonuses.
func WithWeights(w Weights) ResolverOption {
	return func(r *Resolver) { r.weights = w }
}

// WithMining makes Resolve mine the document for categories no catalog
// candidate matched.
func WithMining(enabled bool) ResolverOption {
	return func(r *Resolver) { r.mineOnMiss = enabled }
}

// NewResolver returns a resolver over catalog.
func NewResolver(catalog *Catalog, opts ...ResolverOption) *Resolver {
	r := &Resolver{catalog: catalog, weights: DefaultWeights()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the catalog the resolver reads and reorders.
func (r *Resolver) Catalog() *Catalog { return r.catalog }

// History returns every resolution performed so far, oldest first.
func (r *Resolver) History() []Resolution { return slices.Clone(r.history) }

// Resolve evaluates every candidate of every category against the page.
// Categories with no matching candidate are left out of the returned set.
func (r *Resolver) Resolve(ctx context.Context, p dom.Page) (Resolution, error) {
	var res Resolution
	err := p.Evaluate(ctx, func(doc *dom.Document) error {
		var err error
		res, err = r.resolve(ctx, doc)
		return err
	})
	return res, err
}

// ResolveDocument is Resolve over an already captured document.
func (r *Resolver) ResolveDocument(doc *dom.Document) Resolution {
	res, _ := r.resolve(context.Background(), doc)
	return res
}

func (r *Resolver) resolve(ctx context.Context, doc *dom.Document) (Resolution, error) {
	log := logger.Component("resolver")
	res := Resolution{
		At:        time.Now(),
		Selectors: ResolvedSet{},
		Scores:    make(map[Category][]Candidate, len(Categories)),
	}

	for _, cat := range Categories {
		if err := ctx.Err(); err != nil {
			return Resolution{}, err
		}
		scored := r.score(doc, cat)
		res.Scores[cat] = scored
		if len(scored) == 0 {
			if r.mineOnMiss {
				mined, err := r.mine(ctx, doc, cat)
				if err != nil {
					return Resolution{}, err
				}
				if mined != "" {
					res.Selectors.Set(cat, mined)
					if res.Mined == nil {
						res.Mined = make(map[Category]string)
					}
					res.Mined[cat] = mined
					continue
				}
			}
			res.Unresolved = append(res.Unresolved, cat)
			log.Debug("category unresolved", "category", cat)
			continue
		}
		r.catalog.reorder(cat, scored)
		res.Selectors.Set(cat, scored[0].Pattern)
		log.Debug("category resolved",
			"category", cat,
			"selector", scored[0].Pattern,
			"score", scored[0].Priority,
			"working", len(scored))
	}

	r.history = append(r.history, Resolution{At: res.At, Selectors: res.Selectors.Clone()})
	return res, nil
}

// score returns the working candidates of cat sorted by score, best
// first. Ties keep catalog order.
func (r *Resolver) score(doc *dom.Document, cat Category) []Candidate {
	var scored []Candidate
	for _, cand := range r.catalog.CandidatesFor(cat) {
		n, err := doc.Count(cand.Pattern)
		if err != nil {
			logger.Debug("candidate rejected", "category", cat, "selector", cand.Pattern, "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		scored = append(scored, Candidate{Pattern: cand.Pattern, Priority: r.weights.Score(cand.Pattern, n)})
	}
	slices.SortStableFunc(scored, func(a, b Candidate) int {
		return cmp.Compare(b.Priority, a.Priority)
	})
	return scored
}
