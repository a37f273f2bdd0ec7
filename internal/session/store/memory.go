package store

import (
	"context"
	"sync"

	"github.com/zensu/focusflow/internal/domain/model"
)

// MemoryStore implements Store in process memory. It satisfies the
// concurrency contract but not durability; it backs tests and
// embedded use where restarts are not a concern.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]model.SessionRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]model.SessionRecord)}
}

func (s *MemoryStore) Get(ctx context.Context, userID string) (model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[userID]
	if !ok {
		return model.SessionRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, rec model.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	return nil
}

func (s *MemoryStore) All(ctx context.Context) ([]model.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SessionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.Clone())
	}
	return out, nil
}
