package httpapi

import (
	"net/http"
	"strings"
	"time"

	"call-screener/internal/audit"
	"call-screener/internal/auth"
	"call-screener/internal/callbacks"
	"call-screener/internal/calls"
	"call-screener/internal/health"
	"call-screener/internal/pipeline"
	"call-screener/internal/reporting"
	"call-screener/internal/routing"
	"call-screener/internal/screening"
	"call-screener/internal/sessions"
	"call-screener/internal/speech"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Calls     *calls.Lifecycle
	Router    *routing.Executor
	Callbacks *callbacks.Scheduler
	Screening *screening.Orchestrator
	Pipeline  *pipeline.Dispatcher
	Speech    *speech.Service
	Sessions  sessions.Index
	Reports   *reporting.Service
	Audit     *audit.Service
	Health    *health.Checker

	// HistoryLimit is the page size of GET /api/call/history without ?limit.
	HistoryLimit int
	// MaxAudioBytes caps uploaded recordings.
	MaxAudioBytes int64
}

const (
	maxHistoryLimit      = 500
	defaultMaxAudioBytes = 25 << 20
)

func (h Handlers) historyLimit() int {
	if h.HistoryLimit <= 0 {
		return 50
	}
	return h.HistoryLimit
}

func (h Handlers) maxAudioBytes() int64 {
	if h.MaxAudioBytes <= 0 {
		return defaultMaxAudioBytes
	}
	return h.MaxAudioBytes
}

func notConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: what + " not configured"})
}

func pathID(c *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "validation_failed", Message: name + " required"})
		return "", false
	}
	return id, true
}

// --- Auth ---

type devTokenRequest struct {
	UserID string `json:"user_id" binding:"required,max=64"`
	Role   string `json:"role" binding:"required,oneof=owner operator admin telephony"`
}

// DevToken mints an access token without credentials. Only routed outside
// staging and production; real tokens come from the identity service.
func (h Handlers) DevToken(c *gin.Context) {
	if h.Auth == nil {
		notConfigured(c, "auth")
		return
	}
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	token, err := h.Auth.Issue(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody{Error: "internal", Message: "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "Bearer"})
}

// --- Health ---

func (h Handlers) HealthCheck(c *gin.Context) {
	if h.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
		return
	}
	rep := h.Health.Check(c.Request.Context())
	status := http.StatusOK
	if !rep.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, rep)
}
