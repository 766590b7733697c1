package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"elasticgrid/kernel"
	"elasticgrid/logger"
)

// JSONSnapshotStore is the sole source of truth for engine state restore.
// It implements kernel.PersistenceStore: Save followed by Load is a fixed
// point, and the write path is atomic (write-to-temp then rename) so a
// crash mid-write never leaves a corrupt or partial file behind.
type JSONSnapshotStore struct {
	path string
}

// NewJSONSnapshotStore returns a store rooted at path.
func NewJSONSnapshotStore(path string) *JSONSnapshotStore {
	return &JSONSnapshotStore{path: path}
}

// Load reads the snapshot file, returning a zero-value Snapshot (with a
// nil ExecMap on both sides, signalling "no state yet" to the engine) if
// the file does not exist or fails to parse. A corrupt snapshot must never
// block the engine from starting; it is logged and treated the same as a
// fresh install.
func (s *JSONSnapshotStore) Load() (kernel.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return kernel.Snapshot{}, nil
	}
	if err != nil {
		return kernel.Snapshot{}, fmt.Errorf("store: read snapshot: %w", err)
	}
	var snap kernel.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Errorf("store: snapshot at %s is corrupt, starting from default: %v", s.path, err)
		return kernel.Snapshot{}, nil
	}
	return snap, nil
}

// Save atomically writes the snapshot to disk.
func (s *JSONSnapshotStore) Save(snap kernel.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("store: create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("store: rename snapshot into place: %w", err)
	}
	return nil
}
