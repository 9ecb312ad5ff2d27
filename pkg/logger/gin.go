package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	ginKey          = "logger"
)

// Middleware tags every request with a request id (taken from X-Request-Id when the
// caller sent one), stores the request logger on both the gin context and the
// request context, and logs one summary line when the handler returns.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		SetGin(c, l.With("request_id", rid))

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
		}
		// Downstream middleware (auth) may have enriched the logger.
		reqLogger := FromGin(c)
		switch {
		case len(c.Errors) > 0:
			reqLogger.Error("request", append(attrs, "errors", c.Errors.String())...)
		case c.Writer.Status() >= 500:
			reqLogger.Error("request", attrs...)
		default:
			reqLogger.Info("request", attrs...)
		}
	}
}

// SetGin replaces the request logger for the rest of the chain.
func SetGin(c *gin.Context, l *slog.Logger) {
	c.Set(ginKey, l)
	c.Request = c.Request.WithContext(With(c.Request.Context(), l))
}

// FromGin pulls the request-scoped logger from Gin context.
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(ginKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
