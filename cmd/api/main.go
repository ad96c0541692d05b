package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"

	"campaign-dialer/internal/audit"
	"campaign-dialer/internal/auth"
	"campaign-dialer/internal/calls"
	"campaign-dialer/internal/campaigns"
	"campaign-dialer/internal/config"
	"campaign-dialer/internal/dispatcher"
	"campaign-dialer/internal/queue"
	"campaign-dialer/internal/reporting"
	"campaign-dialer/internal/telemetry"
	"campaign-dialer/internal/telephony"
	"campaign-dialer/migrations"
	"campaign-dialer/pkg/logger"
	"campaign-dialer/pkg/utils"
)

const serviceName = "campaign-dialer"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	meterProvider, shutdownTelemetry, err := telemetry.Init(rootCtx, serviceName, cfg.Telemetry.OTLPEndpoint, log)
	if err != nil {
		log.Error("telemetry init failed", "err", err)
		os.Exit(1)
	}
	metrics, err := telemetry.NewInstruments(meterProvider)
	if err != nil {
		log.Error("metric instruments init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := migrations.Apply(rootCtx, db); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	campaignRepo := campaigns.NewPostgresRepo(db)
	callStore := calls.NewPostgresStore(db)

	var jobs queue.Queue
	switch conn := queue.ResolveConnection(cfg.Queue.Connection, cfg.Queue.Async); conn {
	case queue.ConnectionMemory:
		mq := queue.NewMemoryQueue(0)
		defer mq.Close()
		jobs = mq
	default:
		jobs = queue.NewRedisQueue(rdb, cfg.Queue.Name)
	}

	d, err := dispatcher.New(dispatcher.Deps{
		Campaigns: campaignRepo,
		Calls:     callStore,
		Gateway: telephony.NewTwilioGateway(telephony.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			BaseURL:    cfg.Twilio.APIBaseURL,
			Timeout:    cfg.Twilio.CallTimeout,
		}),
		Queue:   jobs,
		Guard:   dispatcher.NewRedisGuard(rdb, cfg.Dialer.IdempotencyTTL),
		Early:   dispatcher.NewRedisEarlyStatuses(rdb, 0),
		Metrics: metrics,
		Logger:  log,
	}, dispatcher.Settings{
		FromNumber:           cfg.Twilio.PhoneNumber,
		TransferNumber:       cfg.Twilio.TransferNumber,
		AnswerURL:            cfg.AnswerURL(),
		StatusCallbackURL:    cfg.StatusCallbackURL(),
		StatusCallbackEvents: telephony.DefaultStatusCallbackEvents,
		CallTimeout:          cfg.Twilio.CallTimeout,
		CodeMaxAttempts:      cfg.Dialer.CodeMaxAttempts,
	})
	if err != nil {
		log.Error("dispatcher init failed", "err", err)
		os.Exit(1)
	}
	if cfg.Twilio.PhoneNumber == "" {
		log.Warn("TWILIO_PHONE_NUMBER is empty; calls will be skipped until it is set")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := queue.NewWorker(jobs, d.RunJob, cfg.Dialer.JobTimeout, log).
			WithConcurrency(cfg.Dialer.Workers).
			Run(rootCtx); err != nil {
			log.Error("queue worker stopped", "err", err)
		}
	}()

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:        cfg,
		authMW:     auth.RequireAccessToken(authManager),
		calls:      callStore,
		dispatcher: d,
		campaigns:  campaignRepo,
		reporting:  reporting.NewService(campaignRepo, callStore),
		audit:      audit.NewService(audit.NewPostgresRepo(db)),
		checks: map[string]func(context.Context) error{
			"postgres": func(ctx context.Context) error { return utils.HealthCheck(ctx, db, 2*time.Second) },
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "queue", queue.ResolveConnection(cfg.Queue.Connection, cfg.Queue.Async))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	wg.Wait()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error("telemetry shutdown failed", "err", err)
	}
}
