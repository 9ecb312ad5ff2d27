package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"call-screener/internal/pipeline"
	"call-screener/internal/screening"
	"call-screener/internal/speech"
	"call-screener/pkg/logger"

	"github.com/gin-gonic/gin"
)

// audioJSON carries a recording inline; audio_data is base64 on the wire.
type audioJSON struct {
	CallID      string `json:"call_id" binding:"required,max=64"`
	AudioData   []byte `json:"audio_data" binding:"required"`
	Filename    string `json:"filename" binding:"omitempty,max=255"`
	ContentType string `json:"content_type" binding:"omitempty,max=128"`
}

type audioForm struct {
	CallID string                `form:"call_id" binding:"required,max=64"`
	Audio  *multipart.FileHeader `form:"audio" binding:"required"`
}

const defaultAudioFilename = "audio.wav"

// readAudio accepts either a multipart upload (field "audio") or JSON with base64 audio_data.
func (h Handlers) readAudio(c *gin.Context) (string, screening.Audio, bool) {
	limit := h.maxAudioBytes()
	// base64 inflates by 4/3; leave room for the JSON envelope.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit/3*4+64<<10)

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		var f audioForm
		if err := c.ShouldBind(&f); err != nil {
			audioBindError(c, err)
			return "", screening.Audio{}, false
		}
		if f.Audio.Size > limit {
			tooLarge(c, limit)
			return "", screening.Audio{}, false
		}
		file, err := f.Audio.Open()
		if err != nil {
			writeBindError(c, err)
			return "", screening.Audio{}, false
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			writeBindError(c, err)
			return "", screening.Audio{}, false
		}
		if int64(len(data)) > limit {
			tooLarge(c, limit)
			return "", screening.Audio{}, false
		}
		return f.CallID, screening.Audio{
			Data:        data,
			Filename:    audioFilename(f.Audio.Filename),
			ContentType: f.Audio.Header.Get("Content-Type"),
		}, true
	}

	var req audioJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		audioBindError(c, err)
		return "", screening.Audio{}, false
	}
	if int64(len(req.AudioData)) > limit {
		tooLarge(c, limit)
		return "", screening.Audio{}, false
	}
	return req.CallID, screening.Audio{
		Data:        req.AudioData,
		Filename:    audioFilename(req.Filename),
		ContentType: req.ContentType,
	}, true
}

func audioFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" || filepath.Ext(name) == "" {
		return defaultAudioFilename
	}
	return name
}

func audioBindError(c *gin.Context, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{Error: "payload_too_large", Message: "request body too large"})
		return
	}
	writeBindError(c, err)
}

func tooLarge(c *gin.Context, limit int64) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorBody{
		Error:   "payload_too_large",
		Message: "audio exceeds " + humanBytes(limit),
	})
}

func humanBytes(n int64) string {
	const mb = 1 << 20
	if n%mb == 0 {
		return strconv.FormatInt(n/mb, 10) + " MiB"
	}
	return strconv.FormatInt(n, 10) + " bytes"
}

// Transcribe stores the transcript of an uploaded recording on the call.
func (h Handlers) Transcribe(c *gin.Context) {
	if h.Screening == nil {
		notConfigured(c, "screening")
		return
	}
	callID, audio, ok := h.readAudio(c)
	if !ok {
		return
	}
	text, err := h.Screening.TranscribeAndStore(c.Request.Context(), callID, audio)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "text": text})
}

type analyzeRequest struct {
	CallID     string `json:"call_id" binding:"required,max=64"`
	Transcript string `json:"transcript" binding:"required,max=20000"`
}

// Analyze classifies a transcript and stores intent and spam score on the call.
func (h Handlers) Analyze(c *gin.Context) {
	if h.Screening == nil {
		notConfigured(c, "screening")
		return
	}
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	res, err := h.Screening.ClassifyAndStore(c.Request.Context(), req.CallID, req.Transcript)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Screen queues transcription and classification for a recording and returns at once.
func (h Handlers) Screen(c *gin.Context) {
	if h.Pipeline == nil {
		notConfigured(c, "screening pipeline")
		return
	}
	callID, audio, ok := h.readAudio(c)
	if !ok {
		return
	}
	if err := h.Pipeline.Submit(c.Request.Context(), pipeline.Job{CallID: callID, Audio: audio}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"call_id": callID, "status": "accepted"})
}

type streamRequest struct {
	CallID  string `json:"call_id" binding:"required,max=64"`
	Text    string `json:"text" binding:"required,max=5000"`
	VoiceID string `json:"voice_id" binding:"omitempty,max=64"`
}

// StreamSpeech synthesizes text and streams it as audio/mpeg while it is produced.
// Errors before the first chunk are reported as JSON; after that the response is cut short.
// A client disconnect cancels the upstream synthesis through the request context.
func (h Handlers) StreamSpeech(c *gin.Context) {
	if h.Speech == nil {
		notConfigured(c, "speech")
		return
	}
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	ctx := c.Request.Context()
	if h.Calls != nil {
		if _, err := h.Calls.Get(ctx, req.CallID); err != nil {
			writeError(c, err)
			return
		}
	}

	stream, err := h.Speech.Synthesize(ctx, speech.Request{Text: req.Text, VoiceID: req.VoiceID})
	if err != nil {
		writeError(c, err)
		return
	}
	defer stream.Close()

	first, ok := <-stream.Chunks()
	if !ok {
		if err := stream.Err(); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	c.Header("Content-Type", "audio/mpeg")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if !writeChunk(c, first) {
		return
	}
	for done := false; !done; {
		select {
		case chunk, ok := <-stream.Chunks():
			done = !ok || !writeChunk(c, chunk)
		case <-ctx.Done():
			done = true
		}
	}
	if err := stream.Err(); err != nil {
		logger.FromGin(c).Warn("speech stream ended early", "call_id", req.CallID, "err", err)
	}
}

func writeChunk(c *gin.Context, chunk []byte) bool {
	if _, err := c.Writer.Write(chunk); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
