package calls

import (
	"context"
	"time"
)

// Store is the persistence contract for call records.
//
// Mutate must be an atomic read-modify-write: fn receives the current record,
// and its changes are persisted only when fn returns nil. If fn returns an error,
// the stored record is left exactly as it was and the error is returned as-is.
//
// Get/ListRecent/ListByUser return snapshots; they never block behind Mutate.
// Missing records are reported with an error matching apperrors.ErrNotFound.
type Store interface {
	Insert(ctx context.Context, c Call) error
	Get(ctx context.Context, id string) (Call, error)
	Mutate(ctx context.Context, id string, fn func(c *Call) error) (Call, error)
	ListRecent(ctx context.Context, limit int) ([]Call, error)
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]Call, error)
}
