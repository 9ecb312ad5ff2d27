package audit

import (
	"context"
	"testing"
	"time"

	"call-screener/internal/auth"
)

func TestService_AppendRequiresCallTypeAndTarget(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	bad := []Event{
		{Type: EventTypeCallStatus, ToStatus: "missed"},
		{CallID: "c1", ToStatus: "missed"},
		{CallID: "c1", Type: EventTypeCallStatus},
	}
	for _, e := range bad {
		if err := svc.Append(context.Background(), e); err != ErrInvalidEvent {
			t.Fatalf("expected ErrInvalidEvent for %+v, got %v", e, err)
		}
	}
}

func TestService_LogCallStatusCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := auth.WithIdentity(context.Background(), "op-1", "operator")
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	if err := svc.LogCallStatus(ctx, "owner-1", "c1", "ringing", "missed", at); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.ActorUserID != "op-1" || e.ActorRole != "operator" {
		t.Fatalf("actor not captured: %+v", e)
	}
	if e.ID == "" || !e.CreatedAt.Equal(at) {
		t.Fatalf("expected id and given time: %+v", e)
	}
	if e.Message != "call ringing -> missed" {
		t.Fatalf("unexpected message %q", e.Message)
	}
}

func TestService_HistoryFiltersByCall(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	now := time.Now()

	_ = svc.LogCallStatus(ctx, "u", "c1", "ringing", "missed", now)
	_ = svc.LogCallStatus(ctx, "u", "c2", "ringing", "in_progress", now)
	_ = svc.LogCallbackStatus(ctx, "u", "c1", "cb1", "", "scheduled", now)

	evs, err := svc.History(ctx, "c1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 events for c1, got %d", len(evs))
	}
	if evs[1].Type != EventTypeCallbackStatus || evs[1].Message != "callback scheduled" {
		t.Fatalf("unexpected callback event %+v", evs[1])
	}
	if evs[0].ActorUserID != "" {
		t.Fatalf("system action should have no actor")
	}
}
