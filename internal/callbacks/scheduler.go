package callbacks

import (
	"context"
	"strings"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"
	"call-screener/internal/metrics"
	"call-screener/pkg/logger"

	"github.com/google/uuid"
)

// CallReader is the part of the call lifecycle the scheduler needs.
type CallReader interface {
	Get(ctx context.Context, callID string) (calls.Call, error)
}

// AuditLogger records callback status changes; from is empty on creation.
type AuditLogger interface {
	LogCallbackStatusChange(ctx context.Context, cb Callback, from Status) error
}

// Scheduler owns callbacks end to end. A callback leaves Scheduled exactly once.
type Scheduler struct {
	store Store
	calls CallReader
	audit AuditLogger

	clock func() time.Time
	newID func() string
}

func NewScheduler(store Store, calls CallReader, audit AuditLogger) *Scheduler {
	return &Scheduler{
		store: store,
		calls: calls,
		audit: audit,
		clock: time.Now,
		newID: uuid.NewString,
	}
}

// ScheduleRequest asks for a callback on an existing call.
type ScheduleRequest struct {
	CallID        string
	ScheduledTime time.Time
	Notes         *string
}

// Schedule snapshots the parent call's owner and caller number into a new callback.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (Callback, error) {
	if strings.TrimSpace(req.CallID) == "" {
		return Callback{}, apperrors.New(apperrors.ErrValidation, "callbacks.schedule", "call_id is required")
	}
	if req.ScheduledTime.IsZero() {
		return Callback{}, apperrors.New(apperrors.ErrValidation, "callbacks.schedule", "scheduled_time is required")
	}

	call, err := s.calls.Get(ctx, req.CallID)
	if err != nil {
		return Callback{}, err
	}

	now := s.clock().UTC()
	cb := Callback{
		ID:            s.newID(),
		CallID:        call.ID,
		UserID:        call.UserID,
		CallerNumber:  call.CallerNumber,
		ScheduledTime: req.ScheduledTime.UTC(),
		Status:        StatusScheduled,
		Notes:         normalizeNotes(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Insert(ctx, cb); err != nil {
		return Callback{}, err
	}

	metrics.CallbackOperationsTotal.WithLabelValues("schedule", string(StatusScheduled)).Inc()
	logger.From(ctx).Info("callback scheduled", "callback_id", cb.ID, "call_id", cb.CallID, "scheduled_time", cb.ScheduledTime)
	s.logAudit(ctx, cb, "")
	return cb, nil
}

// Complete marks a scheduled callback as done.
func (s *Scheduler) Complete(ctx context.Context, callbackID string) (Callback, error) {
	return s.finish(ctx, "complete", callbackID, StatusCompleted)
}

// Cancel withdraws a scheduled callback.
func (s *Scheduler) Cancel(ctx context.Context, callbackID string) (Callback, error) {
	return s.finish(ctx, "cancel", callbackID, StatusCancelled)
}

func (s *Scheduler) finish(ctx context.Context, op, callbackID string, target Status) (Callback, error) {
	var from Status
	cb, err := s.store.Mutate(ctx, callbackID, func(cb *Callback) error {
		if cb.Status.IsTerminal() {
			return apperrors.New(apperrors.ErrInvalidTransition, "callbacks."+op,
				"callback %s is %s; cannot move to %s", cb.ID, cb.Status, target)
		}
		from = cb.Status
		cb.Status = target
		cb.UpdatedAt = s.clock().UTC()
		return nil
	})
	if err != nil {
		return Callback{}, err
	}

	metrics.CallbackOperationsTotal.WithLabelValues(op, string(target)).Inc()
	logger.From(ctx).Info("callback "+string(target), "callback_id", cb.ID, "call_id", cb.CallID)
	s.logAudit(ctx, cb, from)
	return cb, nil
}

// Get returns one callback.
func (s *Scheduler) Get(ctx context.Context, callbackID string) (Callback, error) {
	return s.store.Get(ctx, callbackID)
}

// ListUpcoming returns every scheduled callback, earliest first.
func (s *Scheduler) ListUpcoming(ctx context.Context) ([]Callback, error) {
	return s.store.ListScheduled(ctx, time.Time{})
}

// ExpireOverdue moves callbacks whose scheduled time passed more than grace ago to Missed.
// Callbacks completed or cancelled concurrently are skipped. It returns how many expired.
func (s *Scheduler) ExpireOverdue(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := s.clock().UTC().Add(-grace)
	due, err := s.store.ListScheduled(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range due {
		cb, err := s.finish(ctx, "expire", c.ID, StatusMissed)
		if apperrors.IsInvalidTransition(err) {
			continue
		}
		if err != nil {
			return expired, err
		}
		expired++
		logger.From(ctx).Debug("callback expired", "callback_id", cb.ID, "scheduled_time", cb.ScheduledTime)
	}
	return expired, nil
}

// RunExpiry calls ExpireOverdue every interval until ctx ends.
func (s *Scheduler) RunExpiry(ctx context.Context, interval, grace time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.ExpireOverdue(ctx, grace)
			if err != nil {
				if ctx.Err() == nil {
					logger.From(ctx).Warn("callback expiry sweep failed", "expired", n, "err", err)
				}
				continue
			}
			if n > 0 {
				logger.From(ctx).Info("overdue callbacks expired", "expired", n)
			}
		}
	}
}

func (s *Scheduler) logAudit(ctx context.Context, cb Callback, from Status) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogCallbackStatusChange(ctx, cb, from); err != nil {
		logger.From(ctx).Warn("callback audit append failed", "callback_id", cb.ID, "err", err)
	}
}

func normalizeNotes(n *string) *string {
	if n == nil {
		return nil
	}
	v := strings.TrimSpace(*n)
	if v == "" {
		return nil
	}
	return &v
}
