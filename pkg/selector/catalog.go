package selector

import "slices"

// Candidate is a pattern hypothesized to locate a category's elements.
// Priority is the last score the resolver computed for it; it orders
// candidates and is never persisted.
type Candidate struct {
	Pattern  string  `json:"pattern"`
	Priority float64 `json:"priority"`
}

// Snapshot is the persisted form of a catalog: patterns in trial order.
type Snapshot map[Category][]string

// Catalog maps each category to its ordered candidates. The order is the
// trial order. A catalog only grows; patterns that stop matching move
// towards the tail but are kept as fallbacks.
//
// A Catalog is not safe for concurrent use. Concurrent sessions each own
// their catalog.
type Catalog struct {
	entries map[Category][]Candidate
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	c := &Catalog{entries: make(map[Category][]Candidate, len(Categories))}
	for _, cat := range Categories {
		c.entries[cat] = nil
	}
	return c
}

// DefaultCatalog returns a fresh catalog seeded with the built-in patterns.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	for _, cat := range Categories {
		c.AddCandidates(cat, builtin[cat]...)
	}
	return c
}

// CandidatesFor returns a copy of the candidates for cat in trial order.
func (c *Catalog) CandidatesFor(cat Category) []Candidate {
	mustValid(cat)
	return slices.Clone(c.entries[cat])
}

// Patterns returns the patterns for cat in trial order.
func (c *Catalog) Patterns(cat Category) []string {
	mustValid(cat)
	out := make([]string, len(c.entries[cat]))
	for i, cand := range c.entries[cat] {
		out[i] = cand.Pattern
	}
	return out
}

// Len returns the number of candidates known for cat.
func (c *Catalog) Len(cat Category) int {
	mustValid(cat)
	return len(c.entries[cat])
}

// Contains reports whether pattern is known for cat.
func (c *Catalog) Contains(cat Category, pattern string) bool {
	return c.index(cat, pattern) >= 0
}

func (c *Catalog) index(cat Category, pattern string) int {
	mustValid(cat)
	return slices.IndexFunc(c.entries[cat], func(cand Candidate) bool {
		return cand.Pattern == pattern
	})
}

// AddCandidates puts patterns at the front of cat's trial order, in the
// given order. Patterns already known are moved forward rather than
// duplicated. It returns how many patterns were previously unknown.
func (c *Catalog) AddCandidates(cat Category, patterns ...string) int {
	mustValid(cat)
	old := c.entries[cat]
	front := make([]Candidate, 0, len(patterns)+len(old))
	seen := make(map[string]bool, len(patterns)+len(old))
	added := 0
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		cand := Candidate{Pattern: p}
		if i := c.index(cat, p); i >= 0 {
			cand = old[i]
		} else {
			added++
		}
		front = append(front, cand)
	}
	for _, cand := range old {
		if !seen[cand.Pattern] {
			front = append(front, cand)
		}
	}
	c.entries[cat] = front
	return added
}

// reorder moves the scored candidates to the front in the given order and
// records their priorities. Unscored candidates keep their relative order
// behind them.
func (c *Catalog) reorder(cat Category, scored []Candidate) {
	mustValid(cat)
	if len(scored) == 0 {
		return
	}
	next := make([]Candidate, 0, len(c.entries[cat]))
	seen := make(map[string]bool, len(scored))
	for _, s := range scored {
		if c.index(cat, s.Pattern) < 0 || seen[s.Pattern] {
			continue
		}
		seen[s.Pattern] = true
		next = append(next, s)
	}
	for _, cand := range c.entries[cat] {
		if !seen[cand.Pattern] {
			next = append(next, cand)
		}
	}
	c.entries[cat] = next
}

// Snapshot returns the patterns of every category in trial order.
func (c *Catalog) Snapshot() Snapshot {
	out := make(Snapshot, len(Categories))
	for _, cat := range Categories {
		out[cat] = c.Patterns(cat)
	}
	return out
}

// Restore merges a saved snapshot into the catalog: saved patterns take
// the front in their saved order and the patterns already present follow.
// Categories this build does not know are ignored.
func (c *Catalog) Restore(s Snapshot) {
	for cat, patterns := range s {
		if !cat.Valid() {
			continue
		}
		c.AddCandidates(cat, patterns...)
	}
}

// Clone returns an independent copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	out := NewCatalog()
	for cat, cands := range c.entries {
		out.entries[cat] = slices.Clone(cands)
	}
	return out
}
