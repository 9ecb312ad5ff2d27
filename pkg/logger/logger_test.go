package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestFrom_FallsBackToDefault(t *testing.T) {
	if From(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	if From(With(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(Middleware(base))
	r.GET("/ping", func(c *gin.Context) {
		From(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-42")
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "req-42" {
		t.Fatalf("request id not echoed")
	}
	dec := json.NewDecoder(&buf)
	lines := 0
	for dec.More() {
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if rec["request_id"] != "req-42" {
			t.Fatalf("log line without request id: %v", rec)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected handler line and summary line, got %d", lines)
	}
}

func TestMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestNew_LevelOverridesEnvironmentDefault(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("production should not log debug by default: %s", buf.String())
	}

	l = newLogger(&buf, "production", "debug")
	l.Debug("shown", "call_id", "c1")
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode: %v (%s)", err, buf.String())
	}
	if line["service"] != "call-screener" || line["env"] != "production" || line["call_id"] != "c1" {
		t.Fatalf("unexpected line %v", line)
	}

	buf.Reset()
	newLogger(&buf, "local", "error").Warn("dropped")
	if buf.Len() != 0 {
		t.Fatalf("error level should drop warnings: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{"debug": slog.LevelDebug, "INFO": slog.LevelInfo, " warn ": slog.LevelWarn, "error": slog.LevelError} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
