package httpapi

import (
	"context"
	"net/http"
	"time"

	"call-screener/internal/callbacks"

	"github.com/gin-gonic/gin"
)

type scheduleCallbackRequest struct {
	CallID        string    `json:"call_id" binding:"required,max=64"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required,callback_time"`
	Notes         *string   `json:"notes" binding:"omitempty,max=1000"`
}

func (h Handlers) ScheduleCallback(c *gin.Context) {
	if h.Callbacks == nil {
		notConfigured(c, "callbacks")
		return
	}
	var req scheduleCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	if !h.requireCallAccess(c, req.CallID) {
		return
	}
	cb, err := h.Callbacks.Schedule(c.Request.Context(), callbacks.ScheduleRequest{
		CallID:        req.CallID,
		ScheduledTime: req.ScheduledTime,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cb)
}

func (h Handlers) GetCallback(c *gin.Context) {
	if h.Callbacks == nil {
		notConfigured(c, "callbacks")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cb, ok := h.visibleCallback(c, id)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cb)
}

func (h Handlers) CompleteCallback(c *gin.Context) {
	h.finishCallback(c, (*callbacks.Scheduler).Complete)
}

func (h Handlers) CancelCallback(c *gin.Context) {
	h.finishCallback(c, (*callbacks.Scheduler).Cancel)
}

type finishFunc func(s *callbacks.Scheduler, ctx context.Context, id string) (callbacks.Callback, error)

func (h Handlers) finishCallback(c *gin.Context, fn finishFunc) {
	if h.Callbacks == nil {
		notConfigured(c, "callbacks")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, ok := h.visibleCallback(c, id); !ok {
		return
	}
	cb, err := fn(h.Callbacks, c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cb)
}

// UpcomingCallbacks lists scheduled callbacks, soonest first.
func (h Handlers) UpcomingCallbacks(c *gin.Context) {
	if h.Callbacks == nil {
		notConfigured(c, "callbacks")
		return
	}
	list, err := h.Callbacks.ListUpcoming(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]callbacks.Callback, 0, len(list))
	uid, scoped := ownerScope(c)
	for _, cb := range list {
		if !scoped || cb.UserID == uid {
			out = append(out, cb)
		}
	}
	c.JSON(http.StatusOK, out)
}

// visibleCallback loads a callback and hides other users' callbacks from owners.
func (h Handlers) visibleCallback(c *gin.Context, id string) (callbacks.Callback, bool) {
	cb, err := h.Callbacks.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return callbacks.Callback{}, false
	}
	if uid, scoped := ownerScope(c); scoped && cb.UserID != uid {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody{Error: "not_found", Message: "callback not found"})
		return callbacks.Callback{}, false
	}
	return cb, true
}
