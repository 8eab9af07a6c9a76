// Package results stores extracted match records as one JSON file per day
// and answers the queries the HTTP API serves.
package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jmylchreest/matchscrape/internal/logger"
	"github.com/jmylchreest/matchscrape/internal/output"
	"github.com/jmylchreest/matchscrape/pkg/extract"
)

// DateLayout is the date format used in file names and API paths.
const DateLayout = "2006-01-02"

const (
	filePrefix = "matches_"
	fileSuffix = ".json"
)

// ErrNotFound is returned when no results exist for a date.
var ErrNotFound = errors.New("no results for date")

// Day is the content of one results file.
type Day struct {
	Date      string           `json:"date"`
	ScrapedAt time.Time        `json:"scraped_at"`
	SessionID string           `json:"session_id,omitempty"`
	Source    string           `json:"source,omitempty"`
	Total     int              `json:"total"`
	Matches   []extract.Record `json:"matches"`
}

// Store reads and writes results files in a directory.
type Store struct {
	dir string
	loc *time.Location
	now func() time.Time
}

// NewStore returns a store rooted at dir. Dates are computed in loc; nil
// means local time.
func NewStore(dir string, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{dir: dir, loc: loc, now: time.Now}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.dir }

// Today returns today's date in the store's location.
func (s *Store) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// PathFor returns the file holding results for date.
func (s *Store) PathFor(date string) string {
	return filepath.Join(s.dir, filePrefix+date+fileSuffix)
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return t, nil
}

// Save writes records as today's results.
func (s *Store) Save(records []extract.Record, sessionID, source string) (*Day, error) {
	now := s.now().In(s.loc)
	if records == nil {
		records = []extract.Record{}
	}
	day := &Day{
		Date:      now.Format(DateLayout),
		ScrapedAt: now,
		SessionID: sessionID,
		Source:    source,
		Total:     len(records),
		Matches:   records,
	}
	path := s.PathFor(day.Date)
	if err := output.WriteFile(path, day); err != nil {
		return nil, fmt.Errorf("save results: %w", err)
	}
	logger.Info("results saved", "file", path, "matches", day.Total)
	return day, nil
}

// Load reads the results for date.
func (s *Store) Load(date string) (*Day, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	path := s.PathFor(date)
	var day Day
	if err := output.ReadFile(path, &day); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, date)
		}
		return nil, fmt.Errorf("load results: %w", err)
	}
	if day.Matches == nil {
		day.Matches = []extract.Record{}
	}
	day.Total = len(day.Matches)
	return &day, nil
}

// Dates lists the dates with results, newest first.
func (s *Store) Dates() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	var dates []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := ParseDate(date); err != nil {
			continue
		}
		dates = append(dates, date)
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates, nil
}

// Filter narrows records. Every non-empty field must be contained,
// case-insensitively, in the matching record field. Team matches either
// side.
type Filter struct {
	Competition string `form:"competition" json:"competition,omitempty"`
	Tier        string `form:"tier" json:"tier,omitempty"`
	Team        string `form:"team" json:"team,omitempty"`
	Status      string `form:"status" json:"status,omitempty"`
}

// Empty reports whether the filter has no criteria.
func (f Filter) Empty() bool {
	return f == Filter{}
}

// Match reports whether r passes the filter.
func (f Filter) Match(r extract.Record) bool {
	if !contains(r.Competition, f.Competition) || !contains(r.Tier, f.Tier) || !contains(r.Status, f.Status) {
		return false
	}
	if f.Team != "" && !contains(r.HomeTeam, f.Team) && !contains(r.AwayTeam, f.Team) {
		return false
	}
	return true
}

// Apply returns the records that pass the filter.
func (f Filter) Apply(records []extract.Record) []extract.Record {
	out := make([]extract.Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func contains(field, want string) bool {
	if want == "" {
		return true
	}
	return strings.Contains(strings.ToLower(field), strings.ToLower(want))
}

// Competitions returns the distinct non-empty competitions, sorted.
func Competitions(records []extract.Record) []string {
	return distinct(records, func(r extract.Record) []string { return []string{r.Competition} })
}

// Tiers returns the distinct non-empty tiers, sorted.
func Tiers(records []extract.Record) []string {
	return distinct(records, func(r extract.Record) []string { return []string{r.Tier} })
}

// Teams returns the distinct known team names, sorted.
func Teams(records []extract.Record) []string {
	return distinct(records, func(r extract.Record) []string {
		return slices.DeleteFunc(r.Teams(), func(t string) bool { return t == extract.UnknownTeam })
	})
}

func distinct(records []extract.Record, fields func(extract.Record) []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, r := range records {
		for _, v := range fields(r) {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}
