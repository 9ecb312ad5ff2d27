package callbacks

import "time"

// Callback is a deferred call-back request tied to exactly one call.
//
// UserID and CallerNumber are copied from the parent call at creation time and
// are never re-synchronised; they record who was owed a callback when it was promised.
// The call does not reference its callbacks; the relation is only navigated from here.
type Callback struct {
	ID     string `json:"id" db:"id"`
	CallID string `json:"call_id" db:"call_id"`

	UserID       string `json:"user_id" db:"user_id"`
	CallerNumber string `json:"caller_number" db:"caller_number"`

	ScheduledTime time.Time `json:"scheduled_time" db:"scheduled_time"`
	Status        Status    `json:"status" db:"status"`
	Notes         *string   `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool { return s != StatusScheduled }

func (c Callback) clone() Callback {
	out := c
	if c.Notes != nil {
		n := *c.Notes
		out.Notes = &n
	}
	return out
}
