// Package ledger persists which pull-request revisions have already
// been reviewed, so a revision is reviewed at most once across cycles
// and restarts.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Ledger maps "{project}/{repository}/{pullRequestId}" keys to the
// revisions already reviewed under that key. One document-level
// timestamp is refreshed on every mutation.
type Ledger struct {
	Entries   map[string][]string `json:"entries"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Key builds the composite identity of a pull request.
func Key(project, repository string, pullRequestID int) string {
	return fmt.Sprintf("%s/%s/%d", project, repository, pullRequestID)
}

// HasReviewed reports whether the revision is recorded under key.
func (l *Ledger) HasReviewed(key, revision string) bool {
	for _, rev := range l.Entries[key] {
		if rev == revision {
			return true
		}
	}
	return false
}

// MarkReviewed records the revision under key. Adding an already
// present revision is a no-op apart from the timestamp refresh.
func (l *Ledger) MarkReviewed(key, revision string) {
	if !l.HasReviewed(key, revision) {
		l.Entries[key] = append(l.Entries[key], revision)
	}
	l.UpdatedAt = time.Now().UTC()
}

// Cleanup drops every key not present in active, bounding growth as
// pull requests close. Callers must build the active set only from
// repositories that listed successfully.
func (l *Ledger) Cleanup(active map[string]struct{}) {
	for key := range l.Entries {
		if _, ok := active[key]; !ok {
			delete(l.Entries, key)
		}
	}
	l.UpdatedAt = time.Now().UTC()
}

// Keys returns the ledger keys in sorted order.
func (l *Ledger) Keys() []string {
	keys := make([]string, 0, len(l.Entries))
	for key := range l.Entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Store reads and writes the ledger document. The mutex covers only
// the file I/O, never the review work between a load and a save.
type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the ledger document. A missing, unreadable, or malformed
// document never blocks a cycle: it is logged and replaced by an empty
// ledger.
func (s *Store) Load() *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	empty := &Ledger{Entries: map[string][]string{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("ledger unreadable, starting fresh", "path", s.path, "error", err)
		}
		return empty
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		slog.Warn("ledger malformed, starting fresh", "path", s.path, "error", err)
		return empty
	}
	if l.Entries == nil {
		l.Entries = map[string][]string{}
	}
	return &l
}

// Save writes the document to a temporary file and renames it into
// place, so a crash mid-write leaves either the old or the new
// complete state.
func (s *Store) Save(l *Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
