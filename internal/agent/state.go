package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxProcessedIds bounds the dedup window persisted between runs. Memories
// older than the cursor are never re-fetched, so the window only has to cover
// records sharing the cursor's timestamp plus a safety margin.
const maxProcessedIds = 2000

// State is the poller's durable cursor. LastCreatedAt is the createdAt of the
// newest memory handled so far (epoch ms); ProcessedIds dedups memories whose
// createdAt ties with the cursor.
type State struct {
	LastCreatedAt float64  `json:"lastCreatedAt"`
	ProcessedIds  []string `json:"processedIds"`

	path      string
	fresh     bool
	processed map[string]struct{}
}

// Fresh reports whether the state was newly created rather than loaded from
// an existing file. A fresh state has no cursor yet; the poller decides
// between "now" and a full backfill.
func (s *State) Fresh() bool { return s.fresh }

// LoadState reads the state file at path, returning a fresh zero-cursor state
// when the file does not exist yet.
func LoadState(path string) (*State, error) {
	s := &State{path: path, processed: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.fresh = true
			return s, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	for _, id := range s.ProcessedIds {
		s.processed[id] = struct{}{}
	}
	return s, nil
}

// Seen reports whether the memory id was already handled.
func (s *State) Seen(id string) bool {
	_, ok := s.processed[id]
	return ok
}

// Mark records a handled memory and advances the cursor if createdAt is newer.
func (s *State) Mark(id string, createdAt float64) {
	if _, ok := s.processed[id]; !ok {
		s.processed[id] = struct{}{}
		s.ProcessedIds = append(s.ProcessedIds, id)
	}
	if len(s.ProcessedIds) > maxProcessedIds {
		drop := s.ProcessedIds[:len(s.ProcessedIds)-maxProcessedIds]
		for _, old := range drop {
			delete(s.processed, old)
		}
		s.ProcessedIds = append([]string(nil), s.ProcessedIds[len(s.ProcessedIds)-maxProcessedIds:]...)
	}
	if createdAt > s.LastCreatedAt {
		s.LastCreatedAt = createdAt
	}
}

// Save writes the state atomically via a temp file and rename, so a crash
// mid-write never truncates the cursor.
func (s *State) Save() error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename state file: %w", err)
	}
	return nil
}
