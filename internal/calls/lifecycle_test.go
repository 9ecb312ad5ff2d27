package calls

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"sync"
	"testing"
	"time"

	"call-screener/internal/apperrors"

	"github.com/brianvoe/gofakeit/v6"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingAudit struct {
	mu      sync.Mutex
	changes []StatusChange
	err     error
}

func (r *recordingAudit) LogCallStatusChange(_ context.Context, e StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, e)
	return r.err
}

func newTestLifecycle(t *testing.T) (*Lifecycle, *stepClock, *recordingAudit) {
	t.Helper()
	clk := &stepClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	aud := &recordingAudit{}
	l := NewLifecycle(NewMemoryStore(), aud)
	l.clock = clk.Now
	n := 0
	l.newID = func() string {
		n++
		return fmt.Sprintf("call-%d", n)
	}
	return l, clk, aud
}

func ptr[T any](v T) *T { return &v }

func TestCreate_StartsRinging(t *testing.T) {
	l, clk, _ := newTestLifecycle(t)
	ctx := context.Background()

	c, err := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: "  +15551234567 ", CallerName: ptr("Ann")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != CallStatusRinging {
		t.Fatalf("expected ringing, got %s", c.Status)
	}
	if c.CallerNumber != "+15551234567" {
		t.Fatalf("expected trimmed number, got %q", c.CallerNumber)
	}
	if !c.StartedAt.Equal(clk.Now()) || !c.CreatedAt.Equal(clk.Now()) || !c.UpdatedAt.Equal(clk.Now()) {
		t.Fatalf("timestamps not set to now: %+v", c)
	}
	if c.EndedAt != nil || c.DurationSeconds != nil {
		t.Fatalf("non-terminal call must not carry ended_at/duration")
	}
}

func TestCreate_RejectsEmptyCallerNumber(t *testing.T) {
	l, _, _ := newTestLifecycle(t)
	for _, n := range []string{"", "   "} {
		_, err := l.Create(context.Background(), CreateRequest{UserID: "u1", CallerNumber: n})
		if !apperrors.IsValidation(err) {
			t.Fatalf("expected validation error for %q, got %v", n, err)
		}
	}
	recent, _ := l.ListRecent(context.Background(), 10)
	if len(recent) != 0 {
		t.Fatalf("expected no calls stored, got %d", len(recent))
	}
}

func TestDeclineThenAccept_Scenario(t *testing.T) {
	l, clk, aud := newTestLifecycle(t)
	ctx := context.Background()

	c, err := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: "+15551234567"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	clk.Advance(42*time.Second + 700*time.Millisecond)

	missed, err := l.Transition(ctx, c.ID, CallStatusMissed)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if missed.Status != CallStatusMissed || missed.EndedAt == nil {
		t.Fatalf("expected missed with ended_at, got %+v", missed)
	}
	if missed.DurationSeconds == nil || *missed.DurationSeconds != 42 {
		t.Fatalf("expected duration 42, got %v", missed.DurationSeconds)
	}

	clk.Advance(time.Minute)
	_, err = l.Transition(ctx, c.ID, CallStatusInProgress)
	if !apperrors.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	after, err := l.Get(ctx, c.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(after, missed) {
		t.Fatalf("terminal record changed:\nbefore %+v\nafter  %+v", missed, after)
	}
	if len(aud.changes) != 1 || aud.changes[0].From != CallStatusRinging || aud.changes[0].To != CallStatusMissed {
		t.Fatalf("unexpected audit trail: %+v", aud.changes)
	}
}

func TestTransition_TerminalRejectsEverything(t *testing.T) {
	all := []CallStatus{CallStatusRinging, CallStatusInProgress, CallStatusCompleted, CallStatusMissed, CallStatusBlocked, CallStatusFailed}
	for _, terminal := range []CallStatus{CallStatusCompleted, CallStatusMissed, CallStatusBlocked, CallStatusFailed} {
		l, _, _ := newTestLifecycle(t)
		ctx := context.Background()
		c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})
		before, err := l.Transition(ctx, c.ID, terminal)
		if err != nil {
			t.Fatalf("to %s: %v", terminal, err)
		}
		for _, target := range all {
			if _, err := l.Transition(ctx, c.ID, target); !apperrors.IsInvalidTransition(err) {
				t.Fatalf("%s -> %s: expected invalid transition, got %v", terminal, target, err)
			}
		}
		after, _ := l.Get(ctx, c.ID)
		if !reflect.DeepEqual(before, after) {
			t.Fatalf("%s record mutated", terminal)
		}
	}
}

func TestTransition_EndedAtIffTerminal(t *testing.T) {
	l, clk, _ := newTestLifecycle(t)
	ctx := context.Background()
	c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})

	clk.Advance(3 * time.Second)
	inProg, err := l.Transition(ctx, c.ID, CallStatusInProgress)
	if err != nil {
		t.Fatalf("in progress: %v", err)
	}
	if inProg.EndedAt != nil || inProg.DurationSeconds != nil {
		t.Fatalf("in_progress must not set ended_at")
	}

	clk.Advance(10 * time.Second)
	done, err := l.Transition(ctx, c.ID, CallStatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.EndedAt == nil || !done.EndedAt.Equal(clk.Now()) {
		t.Fatalf("expected ended_at=now, got %v", done.EndedAt)
	}
	if *done.DurationSeconds != 13 {
		t.Fatalf("expected 13s, got %d", *done.DurationSeconds)
	}
}

func TestTransition_NegativeDurationFloorsAtZero(t *testing.T) {
	l, clk, _ := newTestLifecycle(t)
	ctx := context.Background()
	c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})

	clk.Advance(-5 * time.Second)
	done, err := l.Transition(ctx, c.ID, CallStatusFailed)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if *done.DurationSeconds != 0 {
		t.Fatalf("expected 0, got %d", *done.DurationSeconds)
	}
}

func TestTransition_UnknownCallAndStatus(t *testing.T) {
	l, _, _ := newTestLifecycle(t)
	ctx := context.Background()
	if _, err := l.Transition(ctx, "nope", CallStatusMissed); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})
	if _, err := l.Transition(ctx, c.ID, CallStatus("voicemail")); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordScreeningFields_ClampsAndKeepsStatus(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{1.7, 1.0},
		{-0.3, 0.0},
		{0.42, 0.42},
		{math.Inf(1), 1.0},
	}
	for _, tc := range cases {
		l, _, _ := newTestLifecycle(t)
		ctx := context.Background()
		c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})

		got, err := l.RecordScreeningFields(ctx, c.ID, ScreeningFields{SpamScore: ptr(tc.in), Intent: ptr("sales")})
		if err != nil {
			t.Fatalf("record %v: %v", tc.in, err)
		}
		if got.SpamScore == nil || *got.SpamScore != tc.want {
			t.Fatalf("input %v: expected %v, got %v", tc.in, tc.want, got.SpamScore)
		}
		if got.Status != CallStatusRinging {
			t.Fatalf("status changed to %s", got.Status)
		}
		if got.Transcription != nil {
			t.Fatalf("transcription should be untouched")
		}
	}
}

func TestRecordScreeningFields_NaNRejectedWithoutWrite(t *testing.T) {
	l, _, _ := newTestLifecycle(t)
	ctx := context.Background()
	c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})

	_, err := l.RecordScreeningFields(ctx, c.ID, ScreeningFields{SpamScore: ptr(math.NaN()), Intent: ptr("x")})
	if !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	after, _ := l.Get(ctx, c.ID)
	if !reflect.DeepEqual(after, c) {
		t.Fatalf("record changed on rejected write")
	}
}

func TestRecordScreeningFields_AllowedOnTerminalCall(t *testing.T) {
	l, _, _ := newTestLifecycle(t)
	ctx := context.Background()
	c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})
	if _, err := l.Transition(ctx, c.ID, CallStatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := l.RecordScreeningFields(ctx, c.ID, ScreeningFields{Transcription: ptr("left a message")})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if got.Status != CallStatusCompleted || *got.Transcription != "left a message" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestRecordScreeningFields_MissingCall(t *testing.T) {
	l, _, _ := newTestLifecycle(t)
	_, err := l.RecordScreeningFields(context.Background(), "missing", ScreeningFields{Transcription: ptr("hi")})
	if !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentTransitionAndRecord_BothPersist(t *testing.T) {
	for i := 0; i < 50; i++ {
		l, _, _ := newTestLifecycle(t)
		ctx := context.Background()
		c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := l.Transition(ctx, c.ID, CallStatusInProgress); err != nil {
				t.Errorf("transition: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := l.RecordScreeningFields(ctx, c.ID, ScreeningFields{Transcription: ptr("hi")}); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
		wg.Wait()

		got, _ := l.Get(ctx, c.ID)
		if got.Status != CallStatusInProgress || got.Transcription == nil || *got.Transcription != "hi" {
			t.Fatalf("lost update: %+v", got)
		}
		if l.locks.size() != 0 {
			t.Fatalf("lock entries leaked: %d", l.locks.size())
		}
	}
}

func TestListRecent_NewestFirstAndLimited(t *testing.T) {
	l, clk, _ := newTestLifecycle(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()}); err != nil {
			t.Fatalf("create: %v", err)
		}
		clk.Advance(time.Second)
	}
	got, err := l.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	if got[0].ID != "call-5" || got[2].ID != "call-3" {
		t.Fatalf("unexpected order: %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if _, err := l.ListRecent(ctx, 0); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for limit 0")
	}
}

func TestAuditFailureDoesNotFailTransition(t *testing.T) {
	l, _, aud := newTestLifecycle(t)
	aud.err = fmt.Errorf("audit down")
	ctx := context.Background()
	c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})
	if _, err := l.Transition(ctx, c.ID, CallStatusBlocked); err != nil {
		t.Fatalf("transition should succeed: %v", err)
	}
}

func TestGet_ReturnsIsolatedCopy(t *testing.T) {
	l, _, _ := newTestLifecycle(t)
	ctx := context.Background()
	c, _ := l.Create(ctx, CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone(), CallerName: ptr("Bo")})
	got, _ := l.Get(ctx, c.ID)
	*got.CallerName = "changed"
	again, _ := l.Get(ctx, c.ID)
	if *again.CallerName != "Bo" {
		t.Fatalf("store shares pointers with callers")
	}
}
