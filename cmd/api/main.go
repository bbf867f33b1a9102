package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"example.com/exercisetracker/internal/api"
	"example.com/exercisetracker/internal/auth"
	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/domain"
	"example.com/exercisetracker/internal/keepalive"
	"example.com/exercisetracker/internal/logging"
	"example.com/exercisetracker/internal/outbox"
	"example.com/exercisetracker/internal/persistence"
	httptransport "example.com/exercisetracker/internal/transport/http"
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

	store, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	var dispatcher *outbox.Dispatcher
	if store.Pool != nil {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, cfg.HTTPTimeout, logger.Named("schema-registry"))
		dispatcher = outbox.NewDispatcher(store.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, logger.Named("outbox"))
		go dispatcher.Start(ctx)
	}

	var pinger *keepalive.Pinger
	if cfg.KeepAliveURL != "" {
		pinger = keepalive.NewPinger(cfg.KeepAliveURL, cfg.KeepAliveInterval, cfg.HTTPTimeout, logger.Named("keepalive"))
		go pinger.Start(ctx)
	}

	service := domain.NewService(store.Repository, domain.WithLogger(logger.Named("domain")))

	authCfg := auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, TTL: cfg.SessionTTL}
	limiter := httptransport.NewRateLimiter(httptransport.RateLimit{
		RequestsPerMinute: cfg.AuthRatePerMinute,
		Burst:             cfg.AuthRateBurst,
	})

	handler := api.NewHandler(service, authCfg, cfg.SecureCookies, logger.Named("api"))
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.CORSOrigins,
		Session:        auth.NewMiddleware(authCfg),
		AuthLimiter:    limiter.Middleware,
		Logger:         logger.Named("http"),
	})

	logger.Info("exercise tracker starting", zap.String("address", cfg.HTTPAddress), zap.String("store", cfg.StoreDriver))
	if err := httptransport.ListenAndServe(ctx, httptransport.DefaultServerConfig(cfg.HTTPAddress), router, logger); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	stop()

	if dispatcher != nil {
		dispatcher.Wait()
	}
	if pinger != nil {
		pinger.Wait()
	}
}
