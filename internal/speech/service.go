package speech

import (
	"context"
	"strings"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/metrics"
	"call-screener/pkg/logger"
)

// Request asks for text to be spoken. An empty VoiceID selects the configured default.
type Request struct {
	Text    string
	VoiceID string
}

// Synthesizer is the upstream text-to-speech collaborator.
type Synthesizer interface {
	Stream(ctx context.Context, req Request) (*Stream, error)
}

// Service bounds every synthesis by a timeout and fills the default voice.
type Service struct {
	synth        Synthesizer
	defaultVoice string
	timeout      time.Duration
}

func NewService(synth Synthesizer, defaultVoice string, timeout time.Duration) *Service {
	return &Service{synth: synth, defaultVoice: defaultVoice, timeout: timeout}
}

// Synthesize starts a stream. The returned stream must be closed by the caller.
// The timeout covers the whole stream, not just the first chunk.
func (s *Service) Synthesize(ctx context.Context, req Request) (*Stream, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "speech.synthesize", "text is required")
	}
	req.VoiceID = strings.TrimSpace(req.VoiceID)
	if req.VoiceID == "" {
		req.VoiceID = s.defaultVoice
	}

	ctx = logger.With(ctx, logger.From(ctx).With("voice_id", req.VoiceID))
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	stream, err := s.synth.Stream(ctx, req)
	if err != nil {
		cancel()
		logger.From(ctx).Warn("speech synthesis failed to start", "err", err)
		return nil, err
	}

	metrics.SynthesisStreamsActive.Inc()
	stream.onRelease(func() {
		metrics.SynthesisStreamsActive.Dec()
		cancel()
	})
	return stream, nil
}
