package calls

import "time"

// Call represents one inbound phone call under screening.
//
// Invariants:
// - EndedAt is set if and only if Status is terminal.
// - DurationSeconds, when set, equals EndedAt - StartedAt in whole seconds and is never negative.
// - SpamScore, when set, lies in [0, 1].
//
// Calls are never deleted; terminal calls remain for history queries.
//
// Provider-specific identifiers (like the telephony session id) are not stored here;
// they live in the ephemeral session index keyed by call id.
type Call struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	CallerNumber string  `json:"caller_number" db:"caller_number"`
	CallerName   *string `json:"caller_name,omitempty" db:"caller_name"`

	Status CallStatus `json:"status" db:"status"`

	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds *int       `json:"duration_seconds,omitempty" db:"duration_seconds"`

	// Screening fields, written by the orchestrator without changing Status.
	Transcription *string  `json:"transcription,omitempty" db:"transcription"`
	SpamScore     *float64 `json:"spam_score,omitempty" db:"spam_score"`
	Intent        *string  `json:"intent,omitempty" db:"intent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusMissed     CallStatus = "missed"
	CallStatusBlocked    CallStatus = "blocked"
	CallStatusFailed     CallStatus = "failed"
)

// IsTerminal reports whether no further transition is permitted out of s.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusMissed, CallStatusBlocked, CallStatusFailed:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses.
func (s CallStatus) Valid() bool {
	switch s {
	case CallStatusRinging, CallStatusInProgress, CallStatusCompleted, CallStatusMissed, CallStatusBlocked, CallStatusFailed:
		return true
	default:
		return false
	}
}

// ScreeningFields is a partial update of a call's screening data.
// Nil fields are left untouched.
type ScreeningFields struct {
	Transcription *string
	Intent        *string
	SpamScore     *float64
}

func (f ScreeningFields) empty() bool {
	return f.Transcription == nil && f.Intent == nil && f.SpamScore == nil
}

// ClampSpamScore forces v into [0, 1].
func ClampSpamScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clone returns a deep copy so callers never share pointer fields with a store.
func (c Call) clone() Call {
	out := c
	out.CallerName = cloneString(c.CallerName)
	out.Transcription = cloneString(c.Transcription)
	out.Intent = cloneString(c.Intent)
	if c.EndedAt != nil {
		t := *c.EndedAt
		out.EndedAt = &t
	}
	if c.DurationSeconds != nil {
		d := *c.DurationSeconds
		out.DurationSeconds = &d
	}
	if c.SpamScore != nil {
		s := *c.SpamScore
		out.SpamScore = &s
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
