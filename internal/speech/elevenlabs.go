package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"call-screener/internal/apperrors"
	"call-screener/internal/config"
	"call-screener/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	elevenLabsOutputFormat = "mp3_44100_128"
	writeTimeout           = 5 * time.Second
)

// ElevenLabs streams speech from the ElevenLabs stream-input websocket.
type ElevenLabs struct {
	apiKey  string
	baseURL string
	modelID string
	dialer  *websocket.Dialer
}

func NewElevenLabs(cfg config.ElevenLabsConfig) *ElevenLabs {
	e := &ElevenLabs{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		modelID: cfg.ModelID,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
	if e.baseURL == "" {
		e.baseURL = "wss://api.elevenlabs.io"
	}
	if e.modelID == "" {
		e.modelID = config.DefaultTTSModel
	}
	return e
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type inputMessage struct {
	Text                 string         `json:"text"`
	VoiceSettings        *voiceSettings `json:"voice_settings,omitempty"`
	TryTriggerGeneration bool           `json:"try_trigger_generation,omitempty"`
}

type outputMessage struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (e *ElevenLabs) streamURL(voiceID string) (string, error) {
	u, err := url.Parse(e.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https", "":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported elevenlabs scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	q := u.Query()
	q.Set("model_id", e.modelID)
	q.Set("output_format", elevenLabsOutputFormat)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Stream opens the websocket, sends the whole text followed by the end-of-input
// marker and returns immediately; audio is pushed to the stream as it arrives.
// Cancelling ctx or closing the stream closes the websocket.
func (e *ElevenLabs) Stream(ctx context.Context, req Request) (*Stream, error) {
	const op = "speech.elevenlabs"
	if e.apiKey == "" {
		return nil, apperrors.New(apperrors.ErrSynthesis, op, "elevenlabs api key is not configured")
	}
	wsURL, err := e.streamURL(req.VoiceID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrSynthesis, op, err)
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, resp, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, stageError(ctx, op, err)
	}

	messages := []inputMessage{
		{Text: " ", VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.5}},
		{Text: withTrailingSpace(req.Text), TryTriggerGeneration: true},
		{Text: ""},
	}
	for _, m := range messages {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(m); err != nil {
			_ = conn.Close()
			return nil, stageError(ctx, op, err)
		}
	}

	s := newStream()
	s.onRelease(func() { _ = conn.Close() })

	// Unblocks ReadMessage when the consumer goes away.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-s.Done():
		}
	}()

	go e.read(ctx, conn, s)
	return s, nil
}

func (e *ElevenLabs) read(ctx context.Context, conn *websocket.Conn, s *Stream) {
	const op = "speech.elevenlabs"
	defer s.finish()
	log := logger.From(ctx)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if s.closed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
				return
			}
			s.fail(stageError(ctx, op, err))
			return
		}

		var msg outputMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Warn("elevenlabs: skipping undecodable frame", "err", err)
			continue
		}
		if msg.Error != "" {
			s.fail(apperrors.New(apperrors.ErrSynthesis, op, "%s: %s", msg.Error, msg.Message))
			return
		}
		if msg.Audio != "" {
			audio, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				s.fail(apperrors.Wrap(apperrors.ErrMalformedResult, op, err))
				return
			}
			if len(audio) > 0 && !s.send(ctx, audio) {
				if !s.closed() {
					s.fail(stageError(ctx, op, ctx.Err()))
				}
				return
			}
		}
		if msg.IsFinal {
			return
		}
	}
}

// stageError classifies a collaborator failure, giving deadline expiry its own kind.
func stageError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrTimeout, op, err)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return apperrors.Wrap(apperrors.ErrSynthesis, op, err)
}

func withTrailingSpace(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || strings.HasSuffix(text, " ") {
		return text
	}
	return text + " "
}
