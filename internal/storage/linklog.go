package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/dharsanguruparan/linksigner/internal/model"
)

// LinkLog is the in-memory audit log used when no database is configured.
type LinkLog struct {
	mu    sync.RWMutex
	links map[string]model.LinkRecord
}

// NewLinkLog constructs an empty LinkLog.
func NewLinkLog() *LinkLog {
	return &LinkLog{links: make(map[string]model.LinkRecord)}
}

// Record stores rec, replacing any entry with the same ID.
func (l *LinkLog) Record(_ context.Context, rec model.LinkRecord) error {
	rec.SignedKeys = append([]string(nil), rec.SignedKeys...)
	l.mu.Lock()
	l.links[rec.ID] = rec
	l.mu.Unlock()
	return nil
}

// Get returns the entry for id.
func (l *LinkLog) Get(_ context.Context, id string) (model.LinkRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.links[id]
	if !ok {
		return model.LinkRecord{}, ErrNotFound
	}
	rec.SignedKeys = append([]string(nil), rec.SignedKeys...)
	return rec, nil
}

// List returns the entries for route, newest first. An empty route lists
// everything.
func (l *LinkLog) List(_ context.Context, route string) ([]model.LinkRecord, error) {
	l.mu.RLock()
	out := make([]model.LinkRecord, 0, len(l.links))
	for _, rec := range l.links {
		if route == "" || rec.Route == route {
			rec.SignedKeys = append([]string(nil), rec.SignedKeys...)
			out = append(out, rec)
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
