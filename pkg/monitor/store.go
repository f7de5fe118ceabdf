package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"amazon-monitor/pkg/models"
	"amazon-monitor/pkg/utils"
)

// document is the persisted shape: three top-level collections, rewritten
// whole on every mutation. `settings` is reserved.
type document struct {
	Monitors []models.MonitorDefinition `json:"monitors"`
	History  []models.RunRecord         `json:"history"`
	Settings map[string]any             `json:"settings"`
}

// Store persists the monitor and history collections as a single JSON
// document. It is the sole writer of that file; concurrent processes are not
// supported.
type Store struct {
	path string
	mu   sync.RWMutex
	data document
}

// NewStore creates a store backed by the given file path. Call Load before
// first use.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		data: emptyDocument(),
	}
}

func emptyDocument() document {
	return document{
		Monitors: []models.MonitorDefinition{},
		History:  []models.RunRecord{},
		Settings: map[string]any{},
	}
}

// Load reads the backing document into memory. A missing file yields the
// empty-collections default, not an error.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.data = emptyDocument()
			return nil
		}
		return fmt.Errorf("%w: read %s: %w", utils.ErrPersistence, s.path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parse %s: %w", utils.ErrPersistence, s.path, err)
	}
	if doc.Monitors == nil {
		doc.Monitors = []models.MonitorDefinition{}
	}
	if doc.History == nil {
		doc.History = []models.RunRecord{}
	}
	if doc.Settings == nil {
		doc.Settings = map[string]any{}
	}
	s.data = doc
	return nil
}

// save rewrites the whole document. Caller must hold the write lock.
func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: create directory %s: %w", utils.ErrPersistence, dir, err)
		}
	}

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal document: %w", utils.ErrPersistence, err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %w", utils.ErrPersistence, s.path, err)
	}
	return nil
}

// Monitors returns a copy of the monitor collection.
func (s *Store) Monitors() []models.MonitorDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MonitorDefinition, len(s.data.Monitors))
	copy(out, s.data.Monitors)
	return out
}

// MonitorCount returns the current number of monitor definitions.
func (s *Store) MonitorCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Monitors)
}

// FindMonitor returns a copy of the monitor with the given id.
func (s *Store) FindMonitor(id string) (models.MonitorDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.data.Monitors {
		if m.ID == id {
			return m, true
		}
	}
	return models.MonitorDefinition{}, false
}

// AppendMonitor adds a monitor and persists immediately.
func (s *Store) AppendMonitor(m models.MonitorDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Monitors = append(s.data.Monitors, m)
	return s.save()
}

// UpdateMonitor replaces the stored definition with the same id and
// persists. Returns false when no monitor matched.
func (s *Store) UpdateMonitor(m models.MonitorDefinition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Monitors {
		if s.data.Monitors[i].ID == m.ID {
			s.data.Monitors[i] = m
			return true, s.save()
		}
	}
	return false, nil
}

// RemoveMonitor hard-deletes the definition. History entries for the id are
// retained. Returns false when no monitor matched.
func (s *Store) RemoveMonitor(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data.Monitors[:0]
	removed := false
	for _, m := range s.data.Monitors {
		if m.ID == id {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	if !removed {
		return false, nil
	}
	s.data.Monitors = kept
	return true, s.save()
}

// AppendRun appends an immutable run record and persists.
func (s *Store) AppendRun(r models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.History = append(s.data.History, r)
	return s.save()
}

// History returns run records, filtered by monitor id unless id is empty.
func (s *Store) History(monitorID string) []models.RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if monitorID == "" {
		out := make([]models.RunRecord, len(s.data.History))
		copy(out, s.data.History)
		return out
	}

	out := []models.RunRecord{}
	for _, r := range s.data.History {
		if r.MonitorID == monitorID {
			out = append(out, r)
		}
	}
	return out
}
