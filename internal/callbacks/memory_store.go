package callbacks

import (
	"context"
	"sort"
	"sync"
	"time"

	"call-screener/internal/apperrors"
)

// MemoryStore is an in-memory Store useful for tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]Callback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]Callback{}}
}

func (s *MemoryStore) Insert(ctx context.Context, cb Callback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[cb.ID]; ok {
		return apperrors.New(apperrors.ErrValidation, "callbacks.insert", "callback %s already exists", cb.ID)
	}
	s.byID[cb.ID] = cb.clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Callback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cb, ok := s.byID[id]
	if !ok {
		return Callback{}, apperrors.New(apperrors.ErrNotFound, "callbacks.get", "callback %s", id)
	}
	return cb.clone(), nil
}

func (s *MemoryStore) Mutate(ctx context.Context, id string, fn func(cb *Callback) error) (Callback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[id]
	if !ok {
		return Callback{}, apperrors.New(apperrors.ErrNotFound, "callbacks.mutate", "callback %s", id)
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return Callback{}, err
	}
	s.byID[id] = next.clone()
	return next, nil
}

func (s *MemoryStore) ListScheduled(ctx context.Context, before time.Time) ([]Callback, error) {
	s.mu.RLock()
	out := []Callback{}
	for _, cb := range s.byID {
		if cb.Status != StatusScheduled {
			continue
		}
		if !before.IsZero() && !cb.ScheduledTime.Before(before) {
			continue
		}
		out = append(out, cb.clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}
