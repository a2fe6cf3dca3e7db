// Package storage holds the in-process stores: file metadata, the local blob
// store and the in-memory link audit log.
package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/dharsanguruparan/linksigner/internal/model"
)

// ErrNotFound is returned when a record or blob does not exist.
var ErrNotFound = errors.New("not found")

// MemoryStore keeps file metadata in a map guarded by an RWMutex, so
// concurrent downloads only take the read lock.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*model.FileRecord
	now   func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*model.FileRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Save inserts or replaces a record, stamping CreatedAt on first insert.
func (m *MemoryStore) Save(record *model.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now()
	}
	stored := *record
	m.files[record.ID] = &stored
}

// Get returns a copy of the record so callers cannot mutate the store.
func (m *MemoryStore) Get(id string) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *rec
	return &out, nil
}

// Delete removes a record. Deleting an unknown id is not an error.
func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, id)
}
