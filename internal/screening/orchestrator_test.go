package screening

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"

	"github.com/brianvoe/gofakeit/v6"
)

type stubTranscriber struct {
	text  string
	err   error
	delay time.Duration
}

func (s stubTranscriber) Transcribe(ctx context.Context, _ Audio) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.text, s.err
}

type stubClassifier struct {
	payload string
	err     error
	delay   time.Duration
}

func (s stubClassifier) Classify(ctx context.Context, _ string) ([]byte, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return []byte(s.payload), s.err
}

func setup(t *testing.T, tr Transcriber, cl Classifier, timeout time.Duration) (*Orchestrator, *calls.Lifecycle, calls.Call) {
	t.Helper()
	lc := calls.NewLifecycle(calls.NewMemoryStore(), nil)
	c, err := lc.Create(context.Background(), calls.CreateRequest{UserID: "u1", CallerNumber: gofakeit.Phone()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return NewOrchestrator(lc, tr, cl, timeout), lc, c
}

var wav = Audio{Data: []byte("RIFF...."), Filename: "clip.wav", ContentType: "audio/wav"}

func TestTranscribeAndStore_WritesTranscription(t *testing.T) {
	o, lc, c := setup(t, stubTranscriber{text: "  hello, it's the dentist  "}, nil, time.Second)

	text, err := o.TranscribeAndStore(context.Background(), c.ID, wav)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello, it's the dentist" {
		t.Fatalf("unexpected text %q", text)
	}
	got, _ := lc.Get(context.Background(), c.ID)
	if got.Transcription == nil || *got.Transcription != text || got.Status != calls.CallStatusRinging {
		t.Fatalf("unexpected call %+v", got)
	}
}

func TestTranscribeAndStore_FailureLeavesCallUnchanged(t *testing.T) {
	o, lc, c := setup(t, stubTranscriber{err: errors.New("unintelligible")}, nil, time.Second)

	_, err := o.TranscribeAndStore(context.Background(), c.ID, wav)
	if !errors.Is(err, apperrors.ErrTranscription) {
		t.Fatalf("expected transcription error, got %v", err)
	}
	if !apperrors.Retryable(err) {
		t.Fatalf("transcription failures are retryable")
	}
	got, _ := lc.Get(context.Background(), c.ID)
	if got.Transcription != nil || !got.UpdatedAt.Equal(c.UpdatedAt) {
		t.Fatalf("call was written on failure")
	}
}

func TestTranscribeAndStore_Timeout(t *testing.T) {
	o, lc, c := setup(t, stubTranscriber{text: "late", delay: time.Second}, nil, 20*time.Millisecond)

	_, err := o.TranscribeAndStore(context.Background(), c.ID, wav)
	if !apperrors.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	got, _ := lc.Get(context.Background(), c.ID)
	if got.Transcription != nil {
		t.Fatalf("call was written on timeout")
	}
}

func TestTranscribeAndStore_Validation(t *testing.T) {
	o, _, c := setup(t, stubTranscriber{text: "x"}, nil, time.Second)
	if _, err := o.TranscribeAndStore(context.Background(), c.ID, Audio{}); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := o.TranscribeAndStore(context.Background(), "missing", wav); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClassifyAndStore_ClampsSpamTo1(t *testing.T) {
	payload := `{"intent":"robocall","confidence":0.9,"spam_likelihood":1.7,"sentiment":"neutral","action_recommendation":"BlockCaller"}`
	o, lc, c := setup(t, nil, stubClassifier{payload: payload}, time.Second)

	res, err := o.ClassifyAndStore(context.Background(), c.ID, "press one to claim your prize")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if res.SpamLikelihood != 1.0 {
		t.Fatalf("expected 1.0, got %v", res.SpamLikelihood)
	}
	got, _ := lc.Get(context.Background(), c.ID)
	if got.SpamScore == nil || *got.SpamScore != 1.0 {
		t.Fatalf("expected stored 1.0, got %v", got.SpamScore)
	}
	if got.Intent == nil || *got.Intent != "robocall" {
		t.Fatalf("intent not stored")
	}
}

func TestClassifyAndStore_MalformedWritesNothing(t *testing.T) {
	o, lc, c := setup(t, nil, stubClassifier{payload: `{"intent":"x","spam_likelihood":"very"}`}, time.Second)

	_, err := o.ClassifyAndStore(context.Background(), c.ID, "hello")
	if !apperrors.IsMalformedResult(err) {
		t.Fatalf("expected malformed result, got %v", err)
	}
	if apperrors.Retryable(err) {
		t.Fatalf("malformed results are not retryable")
	}
	got, _ := lc.Get(context.Background(), c.ID)
	if got.Intent != nil || got.SpamScore != nil {
		t.Fatalf("fields written on malformed result")
	}
}

func TestClassifyAndStore_CollaboratorFailureAndTimeout(t *testing.T) {
	o, _, c := setup(t, nil, stubClassifier{err: errors.New("503")}, time.Second)
	if _, err := o.ClassifyAndStore(context.Background(), c.ID, "hi"); !errors.Is(err, apperrors.ErrClassification) {
		t.Fatalf("expected classification error, got %v", err)
	}

	o, _, c = setup(t, nil, stubClassifier{payload: "{}", delay: time.Second}, 20*time.Millisecond)
	if _, err := o.ClassifyAndStore(context.Background(), c.ID, "hi"); !apperrors.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

// deafTranscriber sleeps without watching its context.
type deafTranscriber struct {
	text  string
	sleep time.Duration
}

func (d deafTranscriber) Transcribe(context.Context, Audio) (string, error) {
	time.Sleep(d.sleep)
	return d.text, nil
}

type deafClassifier struct {
	payload string
	sleep   time.Duration
}

func (d deafClassifier) Classify(context.Context, string) ([]byte, error) {
	time.Sleep(d.sleep)
	return []byte(d.payload), nil
}

func TestTranscribeAndStore_TimeoutWhenTranscriberIgnoresContext(t *testing.T) {
	o, lc, c := setup(t, deafTranscriber{text: "late text", sleep: 200 * time.Millisecond}, nil, 20*time.Millisecond)

	start := time.Now()
	text, err := o.TranscribeAndStore(context.Background(), c.ID, wav)
	elapsed := time.Since(start)

	if !apperrors.IsTimeout(err) {
		t.Fatalf("expected timeout, got text=%q err=%v", text, err)
	}
	if elapsed >= 150*time.Millisecond {
		t.Fatalf("wait was not bounded by the timeout: %s", elapsed)
	}

	time.Sleep(250 * time.Millisecond)
	got, _ := lc.Get(context.Background(), c.ID)
	if got.Transcription != nil {
		t.Fatalf("late transcription was written: %q", *got.Transcription)
	}
}

func TestClassifyAndStore_TimeoutWhenClassifierIgnoresContext(t *testing.T) {
	payload := `{"intent":"sales","spam_likelihood":0.7,"sentiment":"neutral","action_recommendation":"Forward"}`
	o, lc, c := setup(t, nil, deafClassifier{payload: payload, sleep: 200 * time.Millisecond}, 20*time.Millisecond)

	if _, err := o.ClassifyAndStore(context.Background(), c.ID, "buy now"); !apperrors.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}

	time.Sleep(250 * time.Millisecond)
	got, _ := lc.Get(context.Background(), c.ID)
	if got.Intent != nil || got.SpamScore != nil {
		t.Fatalf("late classification was written: %+v", got)
	}
}
