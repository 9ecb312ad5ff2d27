package routing

import (
	"context"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/callbacks"
	"call-screener/internal/calls"
	"call-screener/internal/metrics"
	"call-screener/pkg/logger"
)

// CallTransitioner is the lifecycle surface the executor drives.
type CallTransitioner interface {
	Transition(ctx context.Context, callID string, target calls.CallStatus) (calls.Call, error)
}

// CallbackScheduler creates the callback side effect.
type CallbackScheduler interface {
	Schedule(ctx context.Context, req callbacks.ScheduleRequest) (callbacks.Callback, error)
}

// SessionReleaser drops the ephemeral telephony session of a finished call.
type SessionReleaser interface {
	Release(ctx context.Context, callID string) error
}

// Executor applies routing decisions: transition first, then side effects.
type Executor struct {
	calls     CallTransitioner
	callbacks CallbackScheduler
	sessions  SessionReleaser

	callbackDelay time.Duration
	clock         func() time.Time
}

func NewExecutor(calls CallTransitioner, cbs CallbackScheduler, sessions SessionReleaser, callbackDelay time.Duration) *Executor {
	if callbackDelay <= 0 {
		callbackDelay = time.Hour
	}
	return &Executor{
		calls:         calls,
		callbacks:     cbs,
		sessions:      sessions,
		callbackDelay: callbackDelay,
		clock:         time.Now,
	}
}

type Request struct {
	CallID string
	Action Action

	// CallbackTime and Notes apply only to schedule_callback.
	CallbackTime *time.Time
	Notes        *string
}

type Result struct {
	Decision Decision            `json:"decision"`
	Call     calls.Call          `json:"call"`
	Callback *callbacks.Callback `json:"callback,omitempty"`
}

// Execute routes one call. If the transition succeeds but the callback cannot be
// created, the error is returned together with the already-updated call; the call
// stays in its valid missed status and no retry of the transition is possible.
func (e *Executor) Execute(ctx context.Context, req Request) (Result, error) {
	d, err := Route(req.Action)
	if err != nil {
		metrics.RoutingDecisionsTotal.WithLabelValues(string(req.Action), "invalid").Inc()
		return Result{}, err
	}

	call, err := e.calls.Transition(ctx, req.CallID, d.Target)
	if err != nil {
		metrics.RoutingDecisionsTotal.WithLabelValues(string(d.Action), "rejected").Inc()
		return Result{}, err
	}
	res := Result{Decision: d, Call: call}

	if call.Status.IsTerminal() {
		e.releaseSession(ctx, call.ID)
	}

	if d.Has(EffectScheduleCallback) {
		when := e.clock().UTC().Add(e.callbackDelay)
		if req.CallbackTime != nil {
			when = *req.CallbackTime
		}
		cb, err := e.callbacks.Schedule(ctx, callbacks.ScheduleRequest{
			CallID:        call.ID,
			ScheduledTime: when,
			Notes:         req.Notes,
		})
		if err != nil {
			metrics.RoutingDecisionsTotal.WithLabelValues(string(d.Action), "effect_failed").Inc()
			logger.From(ctx).Error("callback side effect failed", "call_id", call.ID, "err", err)
			return res, err
		}
		res.Callback = &cb
	}

	metrics.RoutingDecisionsTotal.WithLabelValues(string(d.Action), "applied").Inc()
	return res, nil
}

// End finishes a call that was in progress, e.g. when voicemail capture completes
// or the line drops. Only completed and failed are accepted.
func (e *Executor) End(ctx context.Context, callID string, status calls.CallStatus) (calls.Call, error) {
	if status != calls.CallStatusCompleted && status != calls.CallStatusFailed {
		return calls.Call{}, apperrors.New(apperrors.ErrValidation, "routing.end", "status must be completed or failed, got %q", status)
	}
	call, err := e.calls.Transition(ctx, callID, status)
	if err != nil {
		return calls.Call{}, err
	}
	e.releaseSession(ctx, call.ID)
	return call, nil
}

func (e *Executor) releaseSession(ctx context.Context, callID string) {
	if e.sessions == nil {
		return
	}
	if err := e.sessions.Release(ctx, callID); err != nil {
		logger.From(ctx).Warn("session release failed", "call_id", callID, "err", err)
	}
}
