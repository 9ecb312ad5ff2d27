// Package pipeline runs call screening (transcribe, classify, optionally route)
// in the background on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"
	"call-screener/internal/metrics"
	"call-screener/internal/routing"
	"call-screener/internal/screening"
	"call-screener/pkg/logger"

	"github.com/panjf2000/ants/v2"
)

// Screener is the orchestrator surface a job drives.
type Screener interface {
	TranscribeAndStore(ctx context.Context, callID string, audio screening.Audio) (string, error)
	ClassifyAndStore(ctx context.Context, callID, transcript string) (screening.Result, error)
}

type CallReader interface {
	Get(ctx context.Context, callID string) (calls.Call, error)
}

// Router applies a routing action; *routing.Executor satisfies it.
type Router interface {
	Execute(ctx context.Context, req routing.Request) (routing.Result, error)
}

type Config struct {
	Workers   int
	QueueSize int
	// AutoRoute feeds the classifier recommendation into the routing policy
	// when the call is still ringing after classification.
	AutoRoute bool
}

// Job is one screening request.
type Job struct {
	CallID string
	UserID string
	Audio  screening.Audio
}

// Outcome is what a finished job produced. Err is the first stage failure.
type Outcome struct {
	CallID     string
	Transcript string
	Result     *screening.Result
	Routed     *routing.Result
	Err        error
}

type task struct {
	ctx context.Context
	job Job
}

// Dispatcher accepts screening jobs and runs them on an ants pool. Submit blocks
// while every worker is busy and fails fast once QueueSize submitters are waiting.
type Dispatcher struct {
	pool     *ants.PoolWithFunc
	screener Screener
	calls    CallReader
	router   Router
	limiter  Limiter
	cfg      Config
	log      *slog.Logger

	wg sync.WaitGroup

	// onDone observes finished jobs; tests use it to wait for completion.
	onDone func(Outcome)
}

func NewDispatcher(cfg Config, s Screener, cr CallReader, r Router, l Limiter, log *slog.Logger) (*Dispatcher, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		screener: s,
		calls:    cr,
		router:   r,
		limiter:  l,
		cfg:      cfg,
		log:      log.With("component", "screening_pipeline"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.Workers, func(i interface{}) {
		t, ok := i.(task)
		if !ok {
			d.log.Error("invalid screening task", "type", fmt.Sprintf("%T", i))
			return
		}
		d.process(t)
	},
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(p interface{}) {
			metrics.ScreeningJobsTotal.WithLabelValues("panic").Inc()
			d.log.Error("panic recovered in screening worker", "panic", p)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create screening pool: %w", err)
	}
	d.pool = pool
	d.log.Info("screening pool initialized", "workers", cfg.Workers, "queue_size", cfg.QueueSize, "auto_route", cfg.AutoRoute)
	return d, nil
}

// Submit validates the job, takes a per-user slot and hands the job to the pool.
// The job runs detached from ctx's cancellation but keeps its values (logger).
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	const op = "pipeline.submit"
	job.CallID = strings.TrimSpace(job.CallID)
	if job.CallID == "" {
		return apperrors.New(apperrors.ErrValidation, op, "call_id is required")
	}
	if len(job.Audio.Data) == 0 {
		return apperrors.New(apperrors.ErrValidation, op, "audio is empty")
	}
	call, err := d.calls.Get(ctx, job.CallID)
	if err != nil {
		return err
	}
	if job.UserID == "" {
		job.UserID = call.UserID
	}

	if d.limiter != nil {
		ok, err := d.limiter.Acquire(ctx, job.UserID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrUnavailable, op, err)
		}
		if !ok {
			metrics.ScreeningJobsTotal.WithLabelValues("rejected").Inc()
			return apperrors.New(apperrors.ErrOverloaded, op, "screening limit reached for user %s", job.UserID)
		}
	}

	d.wg.Add(1)
	if err := d.pool.Invoke(task{ctx: context.WithoutCancel(ctx), job: job}); err != nil {
		d.wg.Done()
		d.release(ctx, job.UserID)
		metrics.ScreeningJobsTotal.WithLabelValues("rejected").Inc()
		if errors.Is(err, ants.ErrPoolOverload) {
			return apperrors.Wrap(apperrors.ErrOverloaded, op, err)
		}
		return apperrors.Wrap(apperrors.ErrUnavailable, op, err)
	}
	metrics.ScreeningJobsTotal.WithLabelValues("submitted").Inc()
	return nil
}

func (d *Dispatcher) process(t task) {
	defer d.wg.Done()
	ctx := t.ctx
	log := logger.From(ctx).With("call_id", t.job.CallID)
	ctx = logger.With(ctx, log)

	out := func() Outcome {
		defer d.release(ctx, t.job.UserID)
		return d.Run(ctx, t.job)
	}()
	if out.Err != nil {
		metrics.ScreeningJobsTotal.WithLabelValues("failed").Inc()
		log.Warn("screening job failed", "err", out.Err, "retryable", apperrors.Retryable(out.Err))
	} else {
		metrics.ScreeningJobsTotal.WithLabelValues("completed").Inc()
	}
	if d.onDone != nil {
		d.onDone(out)
	}
}

// Run executes one job synchronously. Each stage writes to the call only after it
// succeeds; a failing stage stops the job and leaves earlier writes in place.
func (d *Dispatcher) Run(ctx context.Context, job Job) Outcome {
	out := Outcome{CallID: job.CallID}

	text, err := d.screener.TranscribeAndStore(ctx, job.CallID, job.Audio)
	if err != nil {
		out.Err = err
		return out
	}
	out.Transcript = text
	if text == "" {
		logger.From(ctx).Info("empty transcript; skipping classification")
		return out
	}

	res, err := d.screener.ClassifyAndStore(ctx, job.CallID, text)
	if err != nil {
		out.Err = err
		return out
	}
	out.Result = &res

	if d.cfg.AutoRoute && d.router != nil {
		routed, err := d.autoRoute(ctx, job.CallID, res)
		if err != nil {
			out.Err = err
			return out
		}
		out.Routed = routed
	}
	return out
}

// autoRoute applies the recommendation only to calls nobody has routed yet.
// Losing a race against a manual action is not an error.
func (d *Dispatcher) autoRoute(ctx context.Context, callID string, res screening.Result) (*routing.Result, error) {
	call, err := d.calls.Get(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call.Status != calls.CallStatusRinging {
		logger.From(ctx).Debug("call already routed; skipping auto route", "status", call.Status)
		return nil, nil
	}
	action, err := routing.ActionForRecommendation(res.Recommendation)
	if err != nil {
		return nil, err
	}
	routed, err := d.router.Execute(ctx, routing.Request{CallID: callID, Action: action})
	if apperrors.IsInvalidTransition(err) {
		logger.From(ctx).Info("call routed concurrently; auto route dropped", "action", action)
		return nil, nil
	}
	if err != nil {
		return &routed, err
	}
	logger.From(ctx).Info("call auto routed", "action", action, "status", routed.Call.Status)
	return &routed, nil
}

func (d *Dispatcher) release(ctx context.Context, key string) {
	if d.limiter == nil {
		return
	}
	// The request context may already be gone; release must still reach redis.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := d.limiter.Release(rctx, key); err != nil {
		logger.From(ctx).Warn("screening slot release failed", "user_id", key, "err", err)
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones until ctx ends.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.pool.Release()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports busy workers; Waiting reports blocked submitters.
func (d *Dispatcher) Running() int { return d.pool.Running() }
func (d *Dispatcher) Waiting() int { return d.pool.Waiting() }
