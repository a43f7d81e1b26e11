// Package snapshot implements a single-file JSON bot store. It backs the
// durable store as a degraded-mode fallback and doubles as the only store in
// database-less deployments.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/alanyoungcy/tradebot/internal/domain"
)

// Store persists bot records to one JSON file. Writes replace the whole file
// atomically via a temp file and rename. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a Store writing to path. The parent directory is created on
// first write.
func New(path string) *Store {
	return &Store{path: path}
}

// LoadAll reads every record from the snapshot file. A missing file is an
// empty store, not an error.
func (s *Store) LoadAll(ctx context.Context) ([]domain.BotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UpsertOne inserts or replaces the record keyed by its ID and rewrites the
// file.
func (s *Store) UpsertOne(ctx context.Context, rec domain.BotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}

	return s.writeLocked(records)
}

// Delete removes the record with the given ID. Absent records report
// domain.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readLocked()
	if err != nil {
		return err
	}

	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrNotFound
	}

	records = append(records[:idx], records[idx+1:]...)
	return s.writeLocked(records)
}

func (s *Store) readLocked() ([]domain.BotRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []domain.BotRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w", s.path, err)
	}
	return records, nil
}

func (s *Store) writeLocked(records []domain.BotRecord) error {
	if records == nil {
		records = []domain.BotRecord{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: rename to %s: %w", s.path, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BotStore = (*Store)(nil)
