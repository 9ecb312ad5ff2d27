package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"call-screener/internal/audit"
	"call-screener/internal/auth"
	"call-screener/internal/callbacks"
	"call-screener/internal/calls"
	"call-screener/internal/config"
	"call-screener/internal/health"
	"call-screener/internal/httpapi"
	"call-screener/internal/openai"
	"call-screener/internal/pipeline"
	"call-screener/internal/reporting"
	"call-screener/internal/routing"
	"call-screener/internal/screening"
	"call-screener/internal/sessions"
	"call-screener/internal/speech"
	"call-screener/pkg/logger"
	"call-screener/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

const (
	screeningCapPrefix  = "screening:user:"
	callbackSweepEvery  = time.Minute
	healthCacheTTL      = 5 * time.Second
	probeTimeout        = 2 * time.Second
	shutdownGracePeriod = 20 * time.Second
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A missing .env is normal outside local development.
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn(".env not loaded", "err", envErr)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := httpapi.RegisterValidators(); err != nil {
		log.Error("validator init failed", "err", err)
		os.Exit(1)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, log, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{ConnectWait: cfg.DB.ConnectWait})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	callStore := calls.NewPostgresStore(db)
	lifecycle := calls.NewLifecycle(callStore, calls.AuditAdapter{Audit: auditSvc})
	scheduler := callbacks.NewScheduler(callbacks.NewPostgresStore(db), lifecycle, callbacks.AuditAdapter{Audit: auditSvc})
	sessionIndex := sessions.NewRedisIndex(rdb, cfg.Redis.SessionTTL)
	executor := routing.NewExecutor(lifecycle, scheduler, sessionIndex, cfg.Screening.CallbackDelay)

	ai := openai.New(cfg.OpenAI)
	orchestrator := screening.NewOrchestrator(lifecycle, ai, ai, cfg.Screening.Timeout)

	// A slot outlives a crashed replica by at most the ttl.
	userCap, err := utils.NewConcurrencyCap(rdb, screeningCapPrefix, cfg.Screening.MaxPerUser, 3*cfg.Screening.Timeout)
	if err != nil {
		log.Error("screening cap init failed", "err", err)
		os.Exit(1)
	}
	dispatcher, err := pipeline.NewDispatcher(pipeline.Config{
		Workers:   cfg.Screening.Workers,
		QueueSize: cfg.Screening.QueueSize,
		AutoRoute: cfg.Screening.AutoRoute,
	}, orchestrator, lifecycle, executor, userCap, log)
	if err != nil {
		log.Error("screening pipeline init failed", "err", err)
		os.Exit(1)
	}

	speechSvc := speech.NewService(speech.NewElevenLabs(cfg.ElevenLabs), cfg.ElevenLabs.DefaultVoiceID, cfg.Screening.SynthesisTimeout)

	checker := health.NewChecker(
		func(ctx context.Context) error { return utils.PingPostgres(ctx, db, probeTimeout) },
		func(ctx context.Context) error { return utils.PingRedis(ctx, rdb, probeTimeout) },
		healthCacheTTL,
	)

	h := httpapi.Handlers{
		Auth:         authManager,
		Calls:        lifecycle,
		Router:       executor,
		Callbacks:    scheduler,
		Screening:    orchestrator,
		Pipeline:     dispatcher,
		Speech:       speechSvc,
		Sessions:     sessionIndex,
		Reports:      reporting.NewService(callStore),
		Audit:        auditSvc,
		Health:       checker,
		HistoryLimit: cfg.Screening.HistoryLimit,
	}
	r := newRouter(log, h, authManager, cfg)

	go scheduler.RunExpiry(logger.With(rootCtx, log.With("component", "callback_expiry")), callbackSweepEvery, cfg.Screening.CallbackGrace)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Speech streams run up to the synthesis timeout.
		WriteTimeout: cfg.Screening.SynthesisTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Error("screening pipeline shutdown failed", "err", err, "running", dispatcher.Running(), "waiting", dispatcher.Waiting())
	}
}
