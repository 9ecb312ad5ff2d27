package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL values (debug, info, warn, error) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// New builds the service's JSON logger on stdout. An empty level picks debug for
// local and dev, info elsewhere.
func New(appEnv, level string) *slog.Logger {
	return newLogger(os.Stdout, appEnv, level)
}

func newLogger(w io.Writer, appEnv, level string) *slog.Logger {
	lvl := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		lvl = slog.LevelDebug
	}
	if level != "" {
		if parsed, err := ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h).With("service", "call-screener", "env", appEnv)
}

type ctxKey struct{}

// With attaches l to ctx; background screening jobs carry it past the request.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger attached to ctx, or slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
