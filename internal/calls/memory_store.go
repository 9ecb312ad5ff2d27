package calls

import (
	"context"
	"sort"
	"sync"
	"time"

	"call-screener/internal/apperrors"
)

// MemoryStore is an in-memory Store useful for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu    sync.RWMutex
	calls map[string]Call
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{calls: map[string]Call{}}
}

func (s *MemoryStore) Insert(ctx context.Context, c Call) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[c.ID]; ok {
		return apperrors.New(apperrors.ErrValidation, "calls.insert", "call %s already exists", c.ID)
	}
	s.calls[c.ID] = c.clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.calls[id]
	if !ok {
		return Call{}, apperrors.New(apperrors.ErrNotFound, "calls.get", "call %s", id)
	}
	return c.clone(), nil
}

func (s *MemoryStore) Mutate(ctx context.Context, id string, fn func(c *Call) error) (Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.calls[id]
	if !ok {
		return Call{}, apperrors.New(apperrors.ErrNotFound, "calls.mutate", "call %s", id)
	}
	next := cur.clone()
	if err := fn(&next); err != nil {
		return Call{}, err
	}
	s.calls[id] = next.clone()
	return next, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]Call, error) {
	s.mu.RLock()
	out := make([]Call, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.clone())
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Call, 0)
	for _, c := range s.calls {
		if c.UserID != userID {
			continue
		}
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		out = append(out, c.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
