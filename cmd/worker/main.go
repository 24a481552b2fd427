package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/toko-priceguard/internal/app"
	"github.com/noah-isme/toko-priceguard/internal/config"
	"github.com/noah-isme/toko-priceguard/internal/obs"
	"github.com/noah-isme/toko-priceguard/internal/review"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("priceguard", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := app.OpenDatabase(startCtx, cfg, "toko-priceguard-worker")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	opt, err := review.RedisClientOpt(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	metricsSrv := &http.Server{Addr: cfg.HTTPAddr(), Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	worker := review.NewWorker(opt, cfg.ReviewQueueName, cfg.WorkerConcurrency, review.NewStore(pool), logger)
	logger.Info().Str("queue", cfg.ReviewQueueName).Int("concurrency", cfg.WorkerConcurrency).Msg("review worker starting")
	if err := worker.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("review worker stopped")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info().Msg("worker stopped")
}
