package pipeline

import (
	"context"
	"sync"
)

// Limiter caps concurrent screening jobs per key (the owning user).
// utils.ConcurrencyCap is the redis-backed implementation shared across replicas.
type Limiter interface {
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryLimiter is a process-local Limiter for tests and single-instance setups.
type MemoryLimiter struct {
	mu    sync.Mutex
	limit int
	held  map[string]int
}

func NewMemoryLimiter(limit int) *MemoryLimiter {
	return &MemoryLimiter{limit: limit, held: make(map[string]int)}
}

func (m *MemoryLimiter) Acquire(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] >= m.limit {
		return false, nil
	}
	m.held[key]++
	return true, nil
}

func (m *MemoryLimiter) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] <= 1 {
		delete(m.held, key)
		return nil
	}
	m.held[key]--
	return nil
}

// Held reports the slots currently taken for key.
func (m *MemoryLimiter) Held(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}
