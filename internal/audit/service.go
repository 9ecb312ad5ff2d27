package audit

import (
	"context"
	"errors"
	"time"

	"call-screener/internal/auth"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// There is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListByCall(ctx context.Context, callID string) ([]Event, error)
}

// Service logs status changes of calls and callbacks.
//
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

// Append stamps id, time and (when missing) the actor from ctx, then stores e.
func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CallID == "" || e.Type == "" || e.ToStatus == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.ActorUserID == "" {
		if uid, err := auth.UserID(ctx); err == nil {
			e.ActorUserID = uid
		}
	}
	if e.ActorRole == "" {
		if role, err := auth.Role(ctx); err == nil {
			e.ActorRole = role
		}
	}
	return s.repo.Append(ctx, e)
}

// LogCallStatus records a call moving between statuses.
func (s *Service) LogCallStatus(ctx context.Context, ownerUserID, callID, from, to string, at time.Time) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCallStatus,
		OwnerUserID: ownerUserID,
		CallID:      callID,
		FromStatus:  from,
		ToStatus:    to,
		Message:     "call " + from + " -> " + to,
		CreatedAt:   at,
	})
}

// LogCallbackStatus records a callback being created or moving between statuses.
// from is empty when the callback was just scheduled.
func (s *Service) LogCallbackStatus(ctx context.Context, ownerUserID, callID, callbackID, from, to string, at time.Time) error {
	msg := "callback " + to
	if from != "" {
		msg = "callback " + from + " -> " + to
	}
	return s.Append(ctx, Event{
		Type:        EventTypeCallbackStatus,
		OwnerUserID: ownerUserID,
		CallID:      callID,
		CallbackID:  callbackID,
		FromStatus:  from,
		ToStatus:    to,
		Message:     msg,
		CreatedAt:   at,
	})
}

// History returns the audit trail of one call, oldest first.
func (s *Service) History(ctx context.Context, callID string) ([]Event, error) {
	return s.repo.ListByCall(ctx, callID)
}
