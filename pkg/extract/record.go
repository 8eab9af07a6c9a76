// Package extract turns match cards on a page into structured records.
//
// Every field is read in two tiers: the resolved selector for the field
// queried inside the card, then a text heuristic over the card's rendered
// text when the selector is missing or comes back empty.
package extract

import "github.com/jmylchreest/matchscrape/pkg/selector"

// UnknownTeam is the placeholder for a team name that could not be read.
const UnknownTeam = "unknown"

// Record is one extracted match. Empty strings mean "unknown" except for
// the team names, which use UnknownTeam.
type Record struct {
	HomeTeam    string    `json:"home_team" yaml:"home_team"`
	AwayTeam    string    `json:"away_team" yaml:"away_team"`
	KickoffTime string    `json:"kickoff_time" yaml:"kickoff_time"`
	Status      string    `json:"status" yaml:"status"`
	HomeScore   string    `json:"home_score" yaml:"home_score"`
	AwayScore   string    `json:"away_score" yaml:"away_score"`
	Competition string    `json:"competition" yaml:"competition"`
	Tier        string    `json:"tier" yaml:"tier"`
	Meta        *Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Metadata carries diagnostics about where a record came from.
type Metadata struct {
	CardIndex int                  `json:"card_index" yaml:"card_index"`
	Selectors selector.ResolvedSet `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	RawText   string               `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`
	Sources   map[string]Source    `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Source tells which tier produced a field.
type Source string

const (
	FromSelector Source = "selector"
	FromText     Source = "text"
)

// HasTeam reports whether at least one team name was read.
func (r Record) HasTeam() bool {
	return r.HomeTeam != UnknownTeam || r.AwayTeam != UnknownTeam
}

// Teams returns both team names.
func (r Record) Teams() []string {
	return []string{r.HomeTeam, r.AwayTeam}
}
