// Package sessions maps a call id to the transient telephony session token of the
// provider leg carrying it. Entries expire on their own; losing one is harmless.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"call-screener/internal/apperrors"

	"github.com/redis/go-redis/v9"
)

type Index interface {
	Put(ctx context.Context, callID, sessionID string) error
	Lookup(ctx context.Context, callID string) (string, error)
	Release(ctx context.Context, callID string) error
}

// Key returns the cache key for a call's session token.
func Key(callID string) string {
	return fmt.Sprintf("call:%s:twilio_sid", callID)
}

// RedisIndex stores session tokens as plain string keys with a TTL.
type RedisIndex struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisIndex(rdb redis.Cmdable, ttl time.Duration) *RedisIndex {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &RedisIndex{rdb: rdb, ttl: ttl}
}

func (r *RedisIndex) Put(ctx context.Context, callID, sessionID string) error {
	if err := validate(callID, sessionID); err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, Key(callID), sessionID, r.ttl).Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrUnavailable, "sessions.put", err)
	}
	return nil
}

func (r *RedisIndex) Lookup(ctx context.Context, callID string) (string, error) {
	v, err := r.rdb.Get(ctx, Key(callID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperrors.New(apperrors.ErrNotFound, "sessions.lookup", "no session for call %s", callID)
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrUnavailable, "sessions.lookup", err)
	}
	return v, nil
}

func (r *RedisIndex) Release(ctx context.Context, callID string) error {
	if err := r.rdb.Del(ctx, Key(callID)).Err(); err != nil {
		return apperrors.Wrap(apperrors.ErrUnavailable, "sessions.release", err)
	}
	return nil
}

// MemoryIndex is an in-process Index for tests and local runs.
type MemoryIndex struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	clock   func() time.Time
}

type memoryEntry struct {
	sessionID string
	expires   time.Time
}

func NewMemoryIndex(ttl time.Duration) *MemoryIndex {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &MemoryIndex{ttl: ttl, entries: map[string]memoryEntry{}, clock: time.Now}
}

func (m *MemoryIndex) Put(ctx context.Context, callID, sessionID string) error {
	if err := validate(callID, sessionID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(callID)] = memoryEntry{sessionID: sessionID, expires: m.clock().Add(m.ttl)}
	return nil
}

func (m *MemoryIndex) Lookup(ctx context.Context, callID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[Key(callID)]
	if !ok || !m.clock().Before(e.expires) {
		delete(m.entries, Key(callID))
		return "", apperrors.New(apperrors.ErrNotFound, "sessions.lookup", "no session for call %s", callID)
	}
	return e.sessionID, nil
}

func (m *MemoryIndex) Release(ctx context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(callID))
	return nil
}

func validate(callID, sessionID string) error {
	if strings.TrimSpace(callID) == "" || strings.TrimSpace(sessionID) == "" {
		return apperrors.New(apperrors.ErrValidation, "sessions.put", "call id and session id are required")
	}
	return nil
}
