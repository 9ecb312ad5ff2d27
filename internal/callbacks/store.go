package callbacks

import (
	"context"
	"time"
)

// Store persists callbacks. Mutate follows the same contract as calls.Store:
// fn's changes are written only when it returns nil.
type Store interface {
	Insert(ctx context.Context, cb Callback) error
	Get(ctx context.Context, id string) (Callback, error)
	Mutate(ctx context.Context, id string, fn func(cb *Callback) error) (Callback, error)
	// ListScheduled returns callbacks still in the scheduled status with ScheduledTime
	// before the given bound (zero means no bound), earliest first.
	ListScheduled(ctx context.Context, before time.Time) ([]Callback, error)
}
