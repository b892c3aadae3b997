// Command worker runs the order pipeline: the ops HTTP server (webhook,
// task status, summaries, health, metrics), the task pool that executes
// ingest work, and the background sweep scheduler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-order-backend/internal/config"
	httpapi "github.com/tbourn/go-order-backend/internal/http"
	"github.com/tbourn/go-order-backend/internal/observability"
	"github.com/tbourn/go-order-backend/internal/repo"
	"github.com/tbourn/go-order-backend/internal/services"
	"github.com/tbourn/go-order-backend/internal/sysutil"
	"github.com/tbourn/go-order-backend/internal/tasks"
)

// version is set via -ldflags at build time.
var version = "dev"

func main() {
	// Local development convenience; absent .env is fine.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", cfg.OTEL.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	defer closeDB(db, logger)
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}

	orders := services.NewOrderService(db, logger)
	ingest := services.NewIngestService(db, orders, logger)
	summaries := services.NewSummaryService(db, logger)

	pool := tasks.NewPool(tasks.Config{
		Workers:      cfg.Worker.Workers,
		QueueSize:    cfg.Worker.QueueSize,
		TaskTimeout:  cfg.Worker.TaskTimeout,
		MaxAttempts:  cfg.Worker.MaxAttempts,
		RetryBackoff: cfg.Worker.RetryBackoff,
		RateRPS:      cfg.Worker.RateRPS,
		RateBurst:    cfg.Worker.RateBurst,
	}, logger)

	sched := tasks.NewScheduler(tasks.SchedulerConfig{
		Interval:           cfg.Sweep.Interval,
		JobTimeout:         cfg.Sweep.JobTimeout,
		AutoConfirmTimeout: cfg.Sweep.AutoConfirmTimeout,
		ReprocessLookback:  cfg.Sweep.ReprocessLookback,
		MessageRetention:   cfg.Sweep.MessageRetention,
		DailySummaries:     cfg.Sweep.DailySummaries,
	}, logger, ingest, orders, summaries)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.RunForever(ctx)
	}()

	gin.SetMode(cfg.GinMode)
	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		DB:        db,
		Pool:      pool,
		Ingest:    ingest,
		Orders:    orders,
		Summaries: summaries,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", version).Msg("ops server listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("ops server failed")
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("server shutdown")
	}

	// Stop producing new work, then drain what is already queued.
	stop()
	<-schedDone
	pool.Close()

	logger.Info().Msg("worker stopped")
}

func closeDB(db *gorm.DB, logger zerolog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn().Err(err).Msg("database close")
	}
}
