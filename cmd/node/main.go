// Package main provides the entry point of the safe solver node: block
// production, the REST read API and the local input batcher in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safe-solver/internal/api"
	"github.com/safe-solver/internal/batcher"
	"github.com/safe-solver/internal/config"
	"github.com/safe-solver/internal/logging"
	"github.com/safe-solver/internal/retry"
	"github.com/safe-solver/internal/service"
	"github.com/safe-solver/internal/stf"
	"github.com/safe-solver/internal/storage"
	"github.com/safe-solver/internal/worker"
)

const (
	clickHouseMigrationsPath = "migrations/clickhouse"
	shutdownTimeout          = 10 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":     cfg.Logging.Level,
		"format":    cfg.Logging.Format,
		"namespace": cfg.Chain.Namespace,
	}).Info("Safe solver node starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres holds all game state
	if cfg.Database.Postgres.AutoMigrate {
		logger.WithField("path", cfg.Database.Postgres.MigrationsPath).Info("Running Postgres migrations")
		if err := storage.RunMigrations(cfg.Database.Postgres.URL(), cfg.Database.Postgres.MigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run Postgres migrations")
		}
	}

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	// Redis carries the input queue and the read cache
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	healthChecks := map[string]api.HealthCheck{
		"postgres": postgres.Ping,
		"redis":    redis.Ping,
	}

	// ClickHouse is optional; without it the event log is disabled
	var (
		eventSink   worker.EventSink
		eventReader service.EventReader
	)
	if cfg.Database.ClickHouse.Enabled() {
		clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to ClickHouse")
		}
		defer clickhouse.Close()

		if err := storage.RunClickHouseMigrations(ctx, clickhouse, clickHouseMigrationsPath); err != nil {
			logger.WithError(err).Fatal("Failed to run ClickHouse migrations")
		}

		events := storage.NewEventRepository(clickhouse)
		eventSink, eventReader = events, events
		healthChecks["clickhouse"] = func(ctx context.Context) error { return clickhouse.Conn().Ping(ctx) }
		logger.Info("Transition event log enabled")
	} else {
		logger.Info("CLICKHOUSE_HOST not set, transition event log disabled")
	}

	// read side
	var (
		readCache   service.ReadCache
		invalidator worker.CacheInvalidator
	)
	if cfg.Cache.Enabled {
		cacheService := storage.NewCacheService(redis, cfg.Cache.TTL)
		readCache, invalidator = cacheService, cacheService
		logger.WithField("ttl", cacheService.TTL().String()).Info("Read cache enabled")
	}

	pool := postgres.Pool()
	accounts := storage.NewAccountRepository(pool)
	games := storage.NewGameRepository(pool)
	blocks := storage.NewBlockRepository(pool)
	monitor := service.NewPerformanceMonitor()

	gameService := service.NewGameService(accounts, games, readCache, monitor)
	leaderboardService := service.NewLeaderboardService(storage.NewLeaderboardRepository(pool), accounts, games, readCache, monitor)
	eventService := service.NewEventService(eventReader)

	// write side
	queue := storage.NewInputQueue(redis, cfg.Database.Redis.QueueKey)
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = cfg.Chain.CommitAttempts

	producer, err := worker.NewBlockProducer(&worker.BlockProducerConfig{
		Namespace:         cfg.Chain.Namespace,
		BlockTime:         cfg.Chain.BlockTime,
		MaxInputsPerBlock: cfg.Chain.MaxInputsPerBlock,
		Retry:             retryCfg,
		Router:            stf.DefaultRouter(),
		Queue:             queue,
		Ledger:            worker.NewPostgresLedger(postgres),
		Events:            eventSink,
		Cache:             invalidator,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create block producer")
	}
	if err := producer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start block producer")
	}

	var submitter api.InputSubmitter
	if cfg.Batcher.Enabled {
		submitter = batcher.New(cfg.Batcher, queue, blocks)
		logger.WithField("verifySignatures", cfg.Batcher.VerifySignatures).Info("Local batcher enabled on POST /send-input")
	}

	// the confirmation wait of the batcher must fit in one response
	writeTimeout := 15 * time.Second
	if cfg.Batcher.ConfirmTimeout+5*time.Second > writeTimeout {
		writeTimeout = cfg.Batcher.ConfirmTimeout + 5*time.Second
	}

	// validated by config.LoadConfig
	trustedProxies, _ := cfg.RateLimit.ProxyPrefixes()

	server := api.NewServer(&api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		TrustedProxies:    trustedProxies,
	}, gameService, leaderboardService, eventService, submitter, healthChecks)
	server.SetReadMonitor(monitor)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		logger.WithError(err).Error("API server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API server forced to shutdown")
	}
	if err := producer.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Block producer did not stop cleanly")
	}

	logger.WithBlock(producer.Height()).Info("Node stopped")
}
