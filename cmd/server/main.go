package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpadapter "filingwatch/internal/adapters/http"
	"filingwatch/internal/adapters/kafka"
	"filingwatch/internal/adapters/logsender"
	"filingwatch/internal/adapters/memory"
	pg "filingwatch/internal/adapters/postgres"
	"filingwatch/internal/adapters/redislock"
	"filingwatch/internal/config"
	"filingwatch/internal/platform/logging"
	"filingwatch/internal/platform/metrics"
	ports "filingwatch/internal/ports"
	assesssvc "filingwatch/internal/services/assessments"
	dispatchsvc "filingwatch/internal/services/dispatch"
	entitysvc "filingwatch/internal/services/entities"
	monitorsvc "filingwatch/internal/services/monitoring"
	"filingwatch/internal/workers/tickrunner"
)

// store is everything the service needs from persistence.
type store interface {
	ports.EntityRepository
	ports.AssessmentRepository
	ports.StateRepository
	ports.EventRepository
	ports.DeliveryRepository
	ports.FeatureGate
}

func main() {
	cfg, cfgErr := config.Load()
	logger := logging.New(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrNoDatabase) {
		logger.Error("invalid configuration", "error", cfgErr)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db store
	if cfg.DatabaseURL == "" {
		if cfg.Env == "production" {
			logger.Error("DATABASE_URL is required in production")
			os.Exit(1)
		}
		logger.Warn("DATABASE_URL not set; using in-memory store")
		mem := memory.New()
		mem.AllowAllFeatures(true)
		db = mem
	} else {
		pgdb, err := pg.Connect(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			logger.Error("db connect error", "error", err)
			os.Exit(1)
		}
		defer pgdb.Close()
		if cfg.Migrate {
			if err := pgdb.Migrate(ctx); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
		}
		db = pgdb
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	monitorOpts := []monitorsvc.Option{
		monitorsvc.WithLogger(logger),
		monitorsvc.WithMetrics(m),
		monitorsvc.WithVersion(cfg.MonitorVersion),
		monitorsvc.WithConcurrency(cfg.TickConcurrency),
	}
	if cfg.RedisURL != "" {
		rdb, err := redislock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis connect error", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		monitorOpts = append(monitorOpts, monitorsvc.WithLocker(redislock.New(rdb), 15*time.Minute))
	}

	var sender ports.Sender = logsender.New(logger)
	if len(cfg.KafkaBrokers) > 0 {
		ks, err := kafka.NewSender(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Error("kafka client error", "error", err)
			os.Exit(1)
		}
		defer ks.Close()
		sender = ks
	}

	entities := entitysvc.New(db)
	assessments := assesssvc.New(db, db, assesssvc.WithLogger(logger), assesssvc.WithMetrics(m))
	evaluator := monitorsvc.New(db, db, db, monitorOpts...)
	dispatcher := dispatchsvc.New(db, db, sender,
		dispatchsvc.WithLogger(logger),
		dispatchsvc.WithMetrics(m),
		dispatchsvc.WithBatchSize(cfg.DispatchBatch),
		dispatchsvc.WithRate(cfg.DispatchRate, cfg.DispatchBatch),
		dispatchsvc.WithMaxAttempts(cfg.DispatchMaxAttempts),
	)

	srv := httpadapter.New(entities, assessments, db, db, evaluator, dispatcher, cfg.CronSecret,
		httpadapter.WithLogger(logger),
		httpadapter.WithMetricsHandler(promhttp.Handler()),
	)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	// Optional in-process schedulers; external cron can call /v1/jobs instead.
	if cfg.TickInterval > 0 {
		go tickrunner.Run(ctx, logger, tickrunner.EvaluateJob{Evaluator: evaluator, Logger: logger}, cfg.TickInterval, nil)
		logger.Info("evaluation scheduler started", "interval", cfg.TickInterval)
	}
	if cfg.DispatchInterval > 0 {
		go tickrunner.Run(ctx, logger, tickrunner.DispatchJob{Dispatcher: dispatcher, Logger: logger}, cfg.DispatchInterval, nil)
		logger.Info("dispatch scheduler started", "interval", cfg.DispatchInterval)
	}

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("listening", "addr", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	case err := <-errCh:
		logger.Error("server error", "error", fmt.Errorf("listen: %w", err))
		os.Exit(1)
	}
}
