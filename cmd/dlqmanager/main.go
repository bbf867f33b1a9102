package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/logging"
	"example.com/exercisetracker/internal/outbox"
	httptransport "example.com/exercisetracker/internal/transport/http"
)

const (
	defaultDLQBatchSize = 50
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, logger.Named("dlq"))

	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		if err := httptransport.ListenAndServe(ctx, httptransport.DefaultServerConfig(cfg.MetricsAddress), promhttp.Handler(), logger.Named("metrics")); err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	logger.Info("DLQ manager started", zap.Duration("interval", cfg.DLQPollInterval), zap.Int("max_retries", cfg.DLQMaxRetries))

	for {
		select {
		case <-ctx.Done():
			logger.Info("dlq manager received shutdown signal")
			<-metricsDone
			return
		case <-ticker.C:
			requeued, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				logger.Warn("dlq manager error", zap.Error(err))
			} else if requeued > 0 {
				logger.Info("dlq manager requeued entries", zap.Int("count", requeued))
			}
		}
	}
}
