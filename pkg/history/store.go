// Package history persists what a session learned so the next run starts
// from the last working selectors instead of the built-in catalog alone.
package history

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
	"github.com/jmylchreest/matchscrape/pkg/recovery"
	"github.com/jmylchreest/matchscrape/pkg/selector"
	"github.com/jmylchreest/matchscrape/pkg/validate"
)

// ErrNoHistory is returned by Load when no history file exists yet.
var ErrNoHistory = errors.New("no selector history")

const (
	filePrefix = "selector-history_"
	fileSuffix = ".json"
	dateLayout = "2006-01-02"
)

// Record is the persisted state of a session.
type Record struct {
	SessionID         string                `json:"session_id"`
	UpdatedAt         time.Time             `json:"updated_at"`
	Selectors         selector.ResolvedSet  `json:"resolved_selectors"`
	Catalog           selector.Snapshot     `json:"catalog"`
	Resolutions       []selector.Resolution `json:"resolutions,omitempty"`
	ValidationHistory []validate.Event      `json:"validation_history,omitempty"`
	Attempts          []recovery.Attempt    `json:"recovery_history,omitempty"`
}

// Store loads and saves history records.
type Store interface {
	Load() (*Record, error)
	Save(rec *Record) error
}

// FileStore keeps one JSON file per day in a directory. Saving twice on
// the same day overwrites that day's file.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Dir returns the directory the store writes to.
func (s *FileStore) Dir() string { return s.dir }

// PathFor returns the file a record saved at t goes to.
func (s *FileStore) PathFor(t time.Time) string {
	return filepath.Join(s.dir, filePrefix+t.Format(dateLayout)+fileSuffix)
}

// Files lists the history files in the directory, newest first.
func (s *FileStore) Files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		date := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := time.Parse(dateLayout, date); err != nil {
			continue
		}
		files = append(files, filepath.Join(s.dir, name))
	}
	slices.Sort(files)
	slices.Reverse(files)
	return files, nil
}

// Load returns the most recent record.
func (s *FileStore) Load() (*Record, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoHistory
	}
	var rec Record
	if err := output.ReadFile(files[0], &rec); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	logger.Debug("selector history loaded", "file", files[0], "session_id", rec.SessionID)
	return &rec, nil
}

// Save writes rec to today's file.
func (s *FileStore) Save(rec *Record) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	path := s.PathFor(rec.UpdatedAt)
	if err := output.WriteFile(path, rec); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	logger.Info("selector history saved", "file", path)
	return nil
}

// Apply seeds a catalog and a resolved set from rec: saved selectors fill
// the set and the saved catalog order is merged in front of the current
// candidates. Unknown categories in old files are ignored.
func Apply(rec *Record, catalog *selector.Catalog, set selector.ResolvedSet) {
	if rec == nil {
		return
	}
	catalog.Restore(rec.Catalog)
	for cat, p := range rec.Selectors {
		if !cat.Valid() {
			continue
		}
		set.Set(cat, p)
		catalog.AddCandidates(cat, p)
	}
}
