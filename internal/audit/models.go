package audit

import "time"

// Event is an immutable, append-only audit log record of a status change.
//
// Invariants:
// - Events are never updated or deleted.
// - CallID is always set; CallbackID is set only for callback events.
// - Actor capture is best-effort; do not block critical flows on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event. Empty for system actions
	// such as the overdue-callback sweeper.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// OwnerUserID is the user the call belongs to.
	OwnerUserID string `json:"owner_user_id,omitempty" db:"owner_user_id"`

	CallID     string `json:"call_id" db:"call_id"`
	CallbackID string `json:"callback_id,omitempty" db:"callback_id"`

	FromStatus string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string `json:"to_status" db:"to_status"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallStatus     EventType = "call_status_changed"
	EventTypeCallbackStatus EventType = "callback_status_changed"
)
