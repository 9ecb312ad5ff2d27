package httpapi

import (
	"call-screener/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RouteOptions toggles routes that depend on the deployment.
type RouteOptions struct {
	// DevTokens exposes POST /api/auth/token. Never enable in staging or production.
	DevTokens bool
}

// Register wires every API route onto r. authMW verifies the bearer token;
// role checks are per group.
func Register(r gin.IRouter, h Handlers, authMW gin.HandlerFunc, opts RouteOptions) {
	r.GET("/health", h.HealthCheck)

	if opts.DevTokens {
		r.POST("/api/auth/token", h.DevToken)
	}

	api := r.Group("/api")
	api.Use(authMW)

	owners := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator)
	bridge := rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleTelephony)
	anyCaller := rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleOperator, rbac.RoleTelephony)

	call := api.Group("/call")
	{
		call.POST("/start", anyCaller, h.StartCall)
		call.POST("/route", anyCaller, h.RouteCall)
		call.GET("/history", owners, h.CallHistory)
		call.GET("/summary", owners, h.CallsSummary)
		call.GET("/:id", owners, h.GetCall)
		call.POST("/:id/end", bridge, h.EndCall)
		// admin only: RequireAnyRole with no roles still lets admin through.
		call.GET("/:id/audit", rbac.RequireAnyRole(), h.CallAudit)
	}

	voice := api.Group("/voice", bridge)
	{
		voice.POST("/stream", h.StreamSpeech)
		voice.POST("/transcript", h.Transcribe)
		voice.POST("/analyze", h.Analyze)
		voice.POST("/screen", h.Screen)
	}

	cb := api.Group("/callback", owners)
	{
		cb.POST("", h.ScheduleCallback)
		cb.GET("/:id", h.GetCallback)
		cb.POST("/:id/complete", h.CompleteCallback)
		cb.POST("/:id/cancel", h.CancelCallback)
	}
	api.GET("/callbacks", owners, h.UpcomingCallbacks)
}
