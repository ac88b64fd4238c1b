package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"PriceHunter/internal/middleware"
	"PriceHunter/internal/usecase"
	pkgch "PriceHunter/pkg/clickhouse"
	"PriceHunter/pkg/config"
	xhttp "PriceHunter/pkg/http"
	applogger "PriceHunter/pkg/logger"
	"PriceHunter/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	sessions    *usecase.SessionManager
	reconciler  *usecase.Reconciler
	pipeline    *middleware.ObservationPipeline
	consumer    *queue.RedisQueue
	chClient    *pkgch.Client
	redisClient *redis.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies. Optional pieces
// (pipeline, consumer, clients) may be nil depending on configuration.
func New(
	cfg *config.Config,
	lgr *applogger.Logger,
	sessions *usecase.SessionManager,
	reconciler *usecase.Reconciler,
	pipeline *middleware.ObservationPipeline,
	consumer *queue.RedisQueue,
	chClient *pkgch.Client,
	redisClient *redis.Client,
) *App {
	return &App{
		cfg:         cfg,
		logger:      lgr,
		sessions:    sessions,
		reconciler:  reconciler,
		pipeline:    pipeline,
		consumer:    consumer,
		chClient:    chClient,
		redisClient: redisClient,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(a.cfg.Metrics.Path))
	}
	a.httpServer = xhttp.NewServer(a.logger, a.httpHandler, opts...)

	// Flush buffered observations to the sink in the background.
	if a.pipeline != nil {
		a.pipeline.Start(ctx)
		a.logger.Info("observation pipeline started", applogger.String("sink", a.cfg.Sink.Type))
	}

	// Re-scrape tracked queries as the tracked list changes.
	if a.reconciler != nil && a.cfg.Tracking.Enabled {
		go func() {
			if err := a.reconciler.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("reconciler error", applogger.Error(err))
			}
		}()
		a.logger.Info("tracking reconciler started", applogger.String("user", a.cfg.Tracking.User))
	}

	// Consume queued group refreshes.
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("queue start error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop accepting requests first so no new sessions start.
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	// Cancel live scrape sessions and wait for their goroutines.
	a.sessions.Shutdown()

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("queue stop error", applogger.Error(err))
		}
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("redis close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
