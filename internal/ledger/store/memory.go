package store

import (
	"context"
	"sync"

	"civreg/internal/ledger/models"
)

// InMemory keeps ledger entries in an append-only slice. It doubles as the
// test fake for services that write fees.
type InMemory struct {
	mu      sync.RWMutex
	entries []*models.Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.entries = append(s.entries, &cp)
	return nil
}

func (s *InMemory) ListBySource(_ context.Context, source models.Source, referenceID string) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Entry
	for _, e := range s.entries {
		if e.Source == source && e.ReferenceID == referenceID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
