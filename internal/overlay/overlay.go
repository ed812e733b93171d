// Package overlay keeps task fields known locally at creation time and merges
// them into records the backend returns without them.
package overlay

import (
	"context"
	"sync"

	"geotask/internal/task"
)

// Entry holds the locally known values for one task.
type Entry struct {
	Address     string
	Coordinates *task.Coordinates
}

// Empty reports whether the entry carries nothing to merge.
func (e Entry) Empty() bool {
	return e.Address == "" && e.Coordinates == nil
}

// Store maps task identifiers to entries. Entries are never deleted.
type Store interface {
	Put(ctx context.Context, id string, e Entry) error
	Get(ctx context.Context, id string) (Entry, bool, error)
}

// Apply returns a copy of rec with entry values set for fields rec leaves absent.
// A value the record already carries is never replaced, blank or partial ones included.
func Apply(rec task.Record, e Entry) task.Record {
	out := rec.Clone()
	task.FillAddress(out, e.Address)
	if e.Coordinates != nil {
		task.FillCoordinates(out, *e.Coordinates)
	}
	return out
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (m *MemoryStore) Put(_ context.Context, id string, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = e
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok, nil
}
