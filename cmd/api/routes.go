package main

import (
	"log/slog"

	"call-screener/internal/auth"
	"call-screener/internal/config"
	"call-screener/internal/httpapi"
	"call-screener/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter builds the gin engine. Keep this file free of business logic;
// handlers delegate to internal modules.
func newRouter(log *slog.Logger, h httpapi.Handlers, m *auth.Manager, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	// Scraped from inside the cluster; not behind auth.
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpapi.Register(r, h, auth.RequireAccessToken(m), httpapi.RouteOptions{
		DevTokens: cfg.App.Env == "local" || cfg.App.Env == "dev",
	})
	return r
}
