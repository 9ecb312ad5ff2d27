package screening

import (
	"context"
	"errors"
	"strings"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"
	"call-screener/internal/metrics"
	"call-screener/pkg/logger"
)

// Audio is a caller recording submitted for transcription.
// Filename carries the container extension the transcriber uses to detect the format.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Transcriber turns audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// Classifier returns the raw classification payload for a transcript.
// Parsing and validation happen in ParseResult, not in the collaborator.
type Classifier interface {
	Classify(ctx context.Context, transcript string) ([]byte, error)
}

// CallRecorder is the lifecycle surface used to read and annotate calls.
type CallRecorder interface {
	Get(ctx context.Context, callID string) (calls.Call, error)
	RecordScreeningFields(ctx context.Context, callID string, f calls.ScreeningFields) (calls.Call, error)
}

// Orchestrator sequences transcription and classification against a call.
// Collaborator round trips run outside any per-call lock and under a timeout;
// the call is written only after a stage fully succeeds.
type Orchestrator struct {
	calls       CallRecorder
	transcriber Transcriber
	classifier  Classifier
	timeout     time.Duration
}

func NewOrchestrator(rec CallRecorder, t Transcriber, c Classifier, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Orchestrator{calls: rec, transcriber: t, classifier: c, timeout: timeout}
}

const (
	stageTranscribe = "transcribe"
	stageClassify   = "classify"
)

// TranscribeAndStore transcribes audio and stores the text on the call.
// The audio itself is not persisted here.
func (o *Orchestrator) TranscribeAndStore(ctx context.Context, callID string, audio Audio) (string, error) {
	const op = "screening.transcribe"
	if len(audio.Data) == 0 {
		return "", apperrors.New(apperrors.ErrValidation, op, "audio is empty")
	}
	if _, err := o.calls.Get(ctx, callID); err != nil {
		return "", err
	}

	start := time.Now()
	text, timedOut, err := runStage(ctx, o.timeout, func(cctx context.Context) (string, error) {
		return o.transcriber.Transcribe(cctx, audio)
	})
	metrics.ObserveStage(stageTranscribe, start)
	if err != nil {
		return "", o.stageFailure(ctx, stageTranscribe, op, callID, apperrors.ErrTranscription, err, timedOut)
	}

	text = strings.TrimSpace(text)
	if _, err := o.calls.RecordScreeningFields(ctx, callID, calls.ScreeningFields{Transcription: &text}); err != nil {
		return "", err
	}
	logger.From(ctx).Info("transcription stored", "call_id", callID, "chars", len(text))
	return text, nil
}

// ClassifyAndStore classifies a transcript and stores intent and spam score on the call.
// A payload that does not parse leaves the call untouched.
func (o *Orchestrator) ClassifyAndStore(ctx context.Context, callID, transcript string) (Result, error) {
	const op = "screening.classify"
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Result{}, apperrors.New(apperrors.ErrValidation, op, "transcript is empty")
	}
	if _, err := o.calls.Get(ctx, callID); err != nil {
		return Result{}, err
	}

	start := time.Now()
	payload, timedOut, err := runStage(ctx, o.timeout, func(cctx context.Context) ([]byte, error) {
		return o.classifier.Classify(cctx, transcript)
	})
	metrics.ObserveStage(stageClassify, start)
	if err != nil {
		return Result{}, o.stageFailure(ctx, stageClassify, op, callID, apperrors.ErrClassification, err, timedOut)
	}

	res, err := ParseResult(payload)
	if err != nil {
		metrics.ScreeningStageFailuresTotal.WithLabelValues(stageClassify, metrics.KindLabel(apperrors.ErrMalformedResult)).Inc()
		logger.From(ctx).Error("classifier returned malformed result", "call_id", callID, "err", err)
		return Result{}, err
	}

	intent := res.Intent
	spam := res.SpamLikelihood
	if _, err := o.calls.RecordScreeningFields(ctx, callID, calls.ScreeningFields{Intent: &intent, SpamScore: &spam}); err != nil {
		return Result{}, err
	}
	logger.From(ctx).Info("classification stored", "call_id", callID, "intent", intent, "spam_score", spam,
		"recommendation", res.Recommendation)
	return res, nil
}

type stageOutcome[T any] struct {
	val T
	err error
}

// runStage calls fn under timeout and stops waiting once the deadline passes,
// whether or not fn honours its context. A value that arrives after the
// deadline is discarded.
func runStage[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan stageOutcome[T], 1)
	go func() {
		v, err := fn(cctx)
		done <- stageOutcome[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			if r.err == nil {
				r.err = cctx.Err()
			}
			return zero, true, r.err
		}
		if r.err != nil {
			return zero, false, r.err
		}
		return r.val, false, nil
	case <-cctx.Done():
		return zero, errors.Is(cctx.Err(), context.DeadlineExceeded), cctx.Err()
	}
}

// stageFailure classifies a collaborator error. A missed deadline is ErrTimeout;
// an error that already carries a taxonomy kind keeps it; anything else gets kind.
func (o *Orchestrator) stageFailure(ctx context.Context, stage, op, callID string, kind, err error, timedOut bool) error {
	var out error
	switch {
	case timedOut || errors.Is(err, context.DeadlineExceeded):
		out = apperrors.Wrap(apperrors.ErrTimeout, op, err)
	case apperrors.KindOf(err) != nil:
		out = err
	default:
		out = apperrors.Wrap(kind, op, err)
	}
	metrics.ScreeningStageFailuresTotal.WithLabelValues(stage, metrics.KindLabel(apperrors.KindOf(out))).Inc()
	logger.From(ctx).Warn("screening stage failed", "stage", stage, "call_id", callID, "err", out)
	return out
}
