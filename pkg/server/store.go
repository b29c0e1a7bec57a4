package server

import (
	"sync"
	"time"

	"github.com/osbuild/ibmetrics/pkg/dataset"
)

// Store holds the current dataset snapshot. Replace swaps the snapshot
// atomically; readers always see a complete dataset.
type Store struct {
	mu       sync.RWMutex
	ds       dataset.Dataset
	version  uint64
	loadedAt time.Time
}

// NewStore creates a store with an initial snapshot.
func NewStore(ds dataset.Dataset) *Store {
	return &Store{ds: ds, version: 1, loadedAt: time.Now()}
}

// Snapshot returns the current dataset and its version.
func (s *Store) Snapshot() (dataset.Dataset, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds, s.version
}

// Replace installs a new snapshot and invalidates version-keyed caches.
func (s *Store) Replace(ds dataset.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds
	s.version++
	s.loadedAt = time.Now()
}

// LoadedAt returns when the current snapshot was installed.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
