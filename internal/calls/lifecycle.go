package calls

import (
	"context"
	"math"
	"strings"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/metrics"
	"call-screener/pkg/logger"

	"github.com/google/uuid"
)

// Lifecycle is the single authority for creating calls and changing their status.
//
// Mutations on the same call id are serialized by a per-id exclusive section held
// only for the read-modify-write against the store. Reads go straight to the store.
type Lifecycle struct {
	store Store
	locks *keyedMutex
	audit AuditLogger

	// clock and newID are injectable for deterministic tests.
	clock func() time.Time
	newID func() string
}

// AuditLogger records status changes. Failures are logged, never returned.
type AuditLogger interface {
	LogCallStatusChange(ctx context.Context, e StatusChange) error
}

// StatusChange describes one applied transition.
type StatusChange struct {
	CallID string
	UserID string
	From   CallStatus
	To     CallStatus
	At     time.Time
}

func NewLifecycle(store Store, audit AuditLogger) *Lifecycle {
	return &Lifecycle{
		store: store,
		locks: newKeyedMutex(),
		audit: audit,
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// CreateRequest carries the fields needed to open a call record.
type CreateRequest struct {
	UserID       string
	CallerNumber string
	CallerName   *string
}

// Create opens a new call in the Ringing status.
func (l *Lifecycle) Create(ctx context.Context, req CreateRequest) (Call, error) {
	number := strings.TrimSpace(req.CallerNumber)
	if number == "" {
		return Call{}, apperrors.New(apperrors.ErrValidation, "calls.create", "caller_number is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return Call{}, apperrors.New(apperrors.ErrValidation, "calls.create", "user_id is required")
	}

	now := l.clock().UTC()
	c := Call{
		ID:           l.newID(),
		UserID:       req.UserID,
		CallerNumber: number,
		CallerName:   cloneString(req.CallerName),
		Status:       CallStatusRinging,
		StartedAt:    now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := l.store.Insert(ctx, c); err != nil {
		return Call{}, err
	}

	metrics.CallsCreatedTotal.Inc()
	logger.From(ctx).Info("call created", "call_id", c.ID, "user_id", c.UserID)
	return c, nil
}

// Transition moves a call to target. Nothing may leave a terminal status.
// Entering a terminal status stamps EndedAt and derives DurationSeconds.
func (l *Lifecycle) Transition(ctx context.Context, callID string, target CallStatus) (Call, error) {
	if !target.Valid() {
		return Call{}, apperrors.New(apperrors.ErrValidation, "calls.transition", "unknown status %q", target)
	}
	unlock := l.locks.Lock(callID)
	defer unlock()

	var from CallStatus
	updated, err := l.store.Mutate(ctx, callID, func(c *Call) error {
		if c.Status.IsTerminal() {
			return apperrors.New(apperrors.ErrInvalidTransition, "calls.transition",
				"call %s is %s; cannot move to %s", c.ID, c.Status, target)
		}
		from = c.Status

		now := l.clock().UTC()
		c.Status = target
		c.UpdatedAt = now
		if target.IsTerminal() {
			ended := now
			c.EndedAt = &ended
			d := durationSeconds(c.StartedAt, ended)
			c.DurationSeconds = &d
		}
		return nil
	})
	if err != nil {
		return Call{}, err
	}

	metrics.CallTransitionsTotal.WithLabelValues(string(from), string(target)).Inc()
	logger.From(ctx).Info("call transition applied", "call_id", callID, "from", from, "to", target)
	l.logAudit(ctx, StatusChange{CallID: callID, UserID: updated.UserID, From: from, To: target, At: updated.UpdatedAt})
	return updated, nil
}

// RecordScreeningFields writes transcription/intent/spam score without touching Status.
// SpamScore is clamped into [0, 1]; a non-numeric score is rejected before any write.
func (l *Lifecycle) RecordScreeningFields(ctx context.Context, callID string, f ScreeningFields) (Call, error) {
	var score *float64
	if f.SpamScore != nil {
		v := *f.SpamScore
		if math.IsNaN(v) {
			return Call{}, apperrors.New(apperrors.ErrValidation, "calls.record_screening", "spam_score is not a number")
		}
		v = ClampSpamScore(v)
		score = &v
	}

	unlock := l.locks.Lock(callID)
	defer unlock()

	return l.store.Mutate(ctx, callID, func(c *Call) error {
		if f.empty() {
			return nil
		}
		if f.Transcription != nil {
			c.Transcription = cloneString(f.Transcription)
		}
		if f.Intent != nil {
			c.Intent = cloneString(f.Intent)
		}
		if score != nil {
			v := *score
			c.SpamScore = &v
		}
		c.UpdatedAt = l.clock().UTC()
		return nil
	})
}

// Get returns the current call record.
func (l *Lifecycle) Get(ctx context.Context, callID string) (Call, error) {
	return l.store.Get(ctx, callID)
}

// ListRecent returns up to limit calls, newest first.
func (l *Lifecycle) ListRecent(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "calls.list_recent", "limit must be > 0")
	}
	return l.store.ListRecent(ctx, limit)
}

func (l *Lifecycle) logAudit(ctx context.Context, e StatusChange) {
	if l.audit == nil {
		return
	}
	if err := l.audit.LogCallStatusChange(ctx, e); err != nil {
		logger.From(ctx).Warn("call audit append failed", "call_id", e.CallID, "err", err)
	}
}

func durationSeconds(start, end time.Time) int {
	d := int(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
