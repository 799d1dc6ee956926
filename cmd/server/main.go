package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/naduri/naduri-backend/internal/api"
	"github.com/naduri/naduri-backend/internal/config"
	"github.com/naduri/naduri-backend/internal/database"
	"github.com/naduri/naduri-backend/internal/llm"
	"github.com/naduri/naduri-backend/internal/lock"
	"github.com/naduri/naduri-backend/internal/logging"
	"github.com/naduri/naduri-backend/internal/observe"
	"github.com/naduri/naduri-backend/internal/providers"
	"github.com/naduri/naduri-backend/internal/providers/openai"
	"github.com/naduri/naduri-backend/internal/repository/sqlrepo"
	"github.com/naduri/naduri-backend/internal/services"
	"github.com/naduri/naduri-backend/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger := logging.New(cfg.Log)

	// Run migrations before opening the pool
	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	// Connect to database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Telemetry
	telemetry, err := observe.InitProvider(observe.ProviderConfig{Disabled: !cfg.Metrics.Enabled})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize telemetry")
	}
	defer telemetry.Shutdown(context.Background())

	metrics, err := llm.NewMetricsCollector(telemetry.MeterProvider)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create metrics collector")
	}

	audio, err := storage.NewAudioStore(cfg.Storage.AudioDir)
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare audio storage")
	}

	// AI collaborators
	breaker := llm.NewCircuitBreaker(llm.DefaultBreakerConfig(), logger)
	provider, err := openai.NewProvider(cfg.Providers, breaker, metrics, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OpenAI provider")
	}

	svc := services.NewServices(cfg, services.Dependencies{
		SessionRepo:   sqlrepo.NewSessionRepository(db.DB),
		TurnRepo:      sqlrepo.NewTurnRepository(db.DB),
		Locker:        newLocker(cfg.Lock, logger),
		Audio:         audio,
		Collaborators: providers.FromProvider(provider),
		Metrics:       metrics,
		Logger:        logger,
		DB:            db.DB,
		Breaker:       breaker,
	})

	app := api.NewApp(svc, api.Options{
		Server:    cfg.Server,
		RateLimit: cfg.RateLimit,
		Metrics:   telemetry.Handler(),
		Logger:    logger,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		logger.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("Server shutdown failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":   cfg.Server.Addr(),
		"driver": cfg.Database.Driver,
	}).Info("Naduri backend starting")
	if err := app.Listen(cfg.Server.Addr()); err != nil {
		logger.WithError(err).Fatal("Failed to start server")
	}
}

// newLocker shares turn locks through Redis when configured, otherwise keeps them in process
func newLocker(cfg config.LockConfig, logger *logrus.Logger) lock.Locker {
	if cfg.RedisAddr == "" {
		return lock.NewKeyedMutex()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}

	logger.WithField("addr", cfg.RedisAddr).Info("Using Redis session locks")
	return lock.NewRedisLocker(client, cfg.TTL, logger)
}
