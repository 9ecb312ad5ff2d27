package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"call-screener/internal/audit"
	"call-screener/internal/auth"
	"call-screener/internal/calls"
	"call-screener/internal/rbac"
	"call-screener/internal/reporting"
	"call-screener/internal/routing"
	"call-screener/pkg/logger"

	"github.com/gin-gonic/gin"
)

type startCallRequest struct {
	UserID       string  `json:"user_id" binding:"omitempty,max=64"`
	CallerNumber string  `json:"caller_number" binding:"required,phone"`
	CallerName   *string `json:"caller_name" binding:"omitempty,max=128"`
	// SessionID is the telephony provider's call id (a Twilio CallSid).
	SessionID string `json:"twilio_call_sid" binding:"omitempty,max=128"`
}

// StartCall opens a ringing call. Owners always open calls on their own line;
// staff and the telephony bridge name the owning user.
func (h Handlers) StartCall(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "calls")
		return
	}
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	if role == rbac.RoleOwner {
		if req.UserID != "" && req.UserID != uid {
			c.AbortWithStatusJSON(http.StatusForbidden, errorBody{Error: "forbidden", Message: "owners may only open calls on their own line"})
			return
		}
		req.UserID = uid
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "validation_failed", Message: "user_id required", Fields: map[string]string{"user_id": "required"}})
		return
	}

	call, err := h.Calls.Create(ctx, calls.CreateRequest{
		UserID:       req.UserID,
		CallerNumber: req.CallerNumber,
		CallerName:   req.CallerName,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if req.SessionID != "" && h.Sessions != nil {
		// The call exists either way; a lost session mapping only degrades session cleanup.
		if err := h.Sessions.Put(ctx, call.ID, req.SessionID); err != nil {
			logger.FromGin(c).Warn("session index write failed", "call_id", call.ID, "err", err)
		}
	}
	c.JSON(http.StatusCreated, call)
}

type routeCallRequest struct {
	CallID       string     `json:"call_id" binding:"required,max=64"`
	Action       string     `json:"action" binding:"required,call_action"`
	CallbackTime *time.Time `json:"callback_time" binding:"omitempty,callback_time"`
	Notes        *string    `json:"notes" binding:"omitempty,max=1000"`
}

type routeFailure struct {
	errorBody
	Call any `json:"call"`
}

func (h Handlers) RouteCall(c *gin.Context) {
	if h.Router == nil {
		notConfigured(c, "routing")
		return
	}
	var req routeCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	action, err := routing.ParseAction(req.Action)
	if err != nil {
		writeError(c, err)
		return
	}
	if !h.requireCallAccess(c, req.CallID) {
		return
	}

	res, err := h.Router.Execute(c.Request.Context(), routing.Request{
		CallID:       req.CallID,
		Action:       action,
		CallbackTime: req.CallbackTime,
		Notes:        req.Notes,
	})
	if err != nil {
		if res.Call.ID == "" {
			writeError(c, err)
			return
		}
		// The transition committed but the callback did not; report both.
		status, body := errorResponse(err)
		logger.FromGin(c).Error("route applied without its side effect", "call_id", res.Call.ID, "err", err)
		c.AbortWithStatusJSON(status, routeFailure{errorBody: body, Call: res.Call})
		return
	}
	c.JSON(http.StatusOK, res)
}

type endCallRequest struct {
	Status string `json:"status" binding:"required,oneof=completed failed"`
}

func (h Handlers) EndCall(c *gin.Context) {
	if h.Router == nil {
		notConfigured(c, "routing")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	call, err := h.Router.End(c.Request.Context(), id, calls.CallStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, call)
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "calls")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !canSee(c, call) {
		callNotFound(c)
		return
	}
	c.JSON(http.StatusOK, call)
}

// CallHistory lists the most recently created calls, newest first.
// Owners only see their own calls within the page.
func (h Handlers) CallHistory(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "calls")
		return
	}
	limit := h.historyLimit()
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
				Error:   "validation_failed",
				Message: "limit must be between 1 and " + strconv.Itoa(maxHistoryLimit),
			})
			return
		}
		limit = n
	}

	list, err := h.Calls.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]calls.Call, 0, len(list))
	for _, call := range list {
		if canSee(c, call) {
			out = append(out, call)
		}
	}
	c.JSON(http.StatusOK, out)
}

type summaryQuery struct {
	UserID string    `form:"user_id" binding:"omitempty,max=64"`
	From   time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To     time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

const defaultSummaryWindow = 30 * 24 * time.Hour

// CallsSummary aggregates one user's calls. The window defaults to the last 30 days.
func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Reports == nil {
		notConfigured(c, "reporting")
		return
	}
	var q summaryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeBindError(c, err)
		return
	}
	ctx := c.Request.Context()
	uid, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	if q.UserID == "" || role == rbac.RoleOwner {
		q.UserID = uid
	}
	if q.To.IsZero() {
		q.To = time.Now().UTC()
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-defaultSummaryWindow)
	}

	sum, err := h.Reports.CallsSummary(ctx, reporting.CallsSummaryRequest{
		UserID: q.UserID,
		Range:  reporting.TimeRange{From: q.From, To: q.To},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// CallAudit returns the status-change trail of one call, oldest first.
func (h Handlers) CallAudit(c *gin.Context) {
	if h.Audit == nil {
		notConfigured(c, "audit")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.Audit.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"call_id": id, "events": events})
}

// ownerScope returns the caller's user id when the caller is an owner.
// Other roles are not scoped.
func ownerScope(c *gin.Context) (string, bool) {
	role, _ := auth.Role(c.Request.Context())
	if role != rbac.RoleOwner {
		return "", false
	}
	uid, _ := auth.UserID(c.Request.Context())
	return uid, true
}

// canSee reports whether the caller may read or act on call.
func canSee(c *gin.Context, call calls.Call) bool {
	uid, scoped := ownerScope(c)
	return !scoped || call.UserID == uid
}

// requireCallAccess loads callID for owners and aborts with 404 when the call
// belongs to another user. It returns false once the response is written.
func (h Handlers) requireCallAccess(c *gin.Context, callID string) bool {
	if _, scoped := ownerScope(c); !scoped {
		return true
	}
	if h.Calls == nil {
		notConfigured(c, "calls")
		return false
	}
	call, err := h.Calls.Get(c.Request.Context(), callID)
	if err != nil {
		writeError(c, err)
		return false
	}
	if !canSee(c, call) {
		callNotFound(c)
		return false
	}
	return true
}

// callNotFound answers like a missing call so owners cannot probe other lines.
func callNotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "call not found"})
}
