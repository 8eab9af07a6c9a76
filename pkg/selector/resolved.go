package selector

import "maps"

// ResolvedSet maps each category to its currently chosen pattern. A
// missing or empty entry means the category is unresolved.
type ResolvedSet map[Category]string

// Get returns the pattern for cat and whether it is resolved.
func (s ResolvedSet) Get(cat Category) (string, bool) {
	p, ok := s[cat]
	return p, ok && p != ""
}

// Set installs pattern for cat. Empty patterns are ignored: a resolved
// category is overwritten, never cleared.
func (s ResolvedSet) Set(cat Category, pattern string) bool {
	mustValid(cat)
	if pattern == "" || s[cat] == pattern {
		return false
	}
	s[cat] = pattern
	return true
}

// Clone returns an independent copy.
func (s ResolvedSet) Clone() ResolvedSet {
	if s == nil {
		return ResolvedSet{}
	}
	return maps.Clone(s)
}

// Merge overwrites s with every resolved entry of other and returns the
// categories whose pattern changed.
func (s ResolvedSet) Merge(other ResolvedSet) []Category {
	var changed []Category
	for _, cat := range Categories {
		if p, ok := other.Get(cat); ok && s.Set(cat, p) {
			changed = append(changed, cat)
		}
	}
	return changed
}

// Unresolved lists the categories without a pattern, in canonical order.
func (s ResolvedSet) Unresolved() []Category {
	var out []Category
	for _, cat := range Categories {
		if _, ok := s.Get(cat); !ok {
			out = append(out, cat)
		}
	}
	return out
}
