// Package selector holds the adaptive selector machinery: the catalog of
// candidate CSS patterns per semantic field, the resolver that scores them
// against a live document, and the heuristic miner that widens the catalog
// when every known pattern has stopped matching.
package selector

import (
	"fmt"
	"slices"
)

// Category is a semantic field located on the page.
type Category string

const (
	Card        Category = "card"
	TeamName    Category = "teamName"
	KickoffTime Category = "kickoffTime"
	Score       Category = "score"
	Status      Category = "status"
	Competition Category = "competition"
)

// Categories lists every category in resolution order.
var Categories = []Category{Card, TeamName, KickoffTime, Score, Status, Competition}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// ParseCategory converts user input into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

func mustValid(c Category) {
	if !c.Valid() {
		panic(fmt.Sprintf("selector: unknown category %q", string(c)))
	}
}
