package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch/internal/app"
	"dispatch/internal/config"
	"dispatch/internal/events"
	"dispatch/internal/handler"
	internalRedis "dispatch/internal/redis"
	"dispatch/internal/repository/postgres"
	"dispatch/internal/routing"
	"dispatch/internal/service"
)

func main() {
	// Load configuration.
	cfg := config.Load()

	logger := newLogger(cfg.Logging)
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to Redis")

	// Initialize the event publisher. The dispatch core degrades to a no-op
	// publisher when RabbitMQ is disabled.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.RabbitMQ.Enabled {
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer amqpPub.Close()
		publisher = amqpPub
		logger.Info("connected to RabbitMQ", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	// Wire dependencies.
	server := wireServer(db, redisClient, nrApp, publisher, cfg, logger)

	// Start server in goroutine.
	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(
	db *sql.DB,
	redisClient *redis.Client,
	nrApp *newrelic.Application,
	publisher events.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *http.Server {
	// Initialize Redis stores.
	locationStore := internalRedis.NewLocationStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	driverRepo := postgres.NewDriverRepository(db)
	rideRepo := postgres.NewRideRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	assignmentStore := postgres.NewAssignmentStore(db)

	// Initialize the routing provider. Without an API key, fare estimation
	// falls back to geodesic distance.
	var provider routing.Provider
	if cfg.Maps.APIKey != "" {
		googleProvider, err := routing.NewGoogleProvider(cfg.Maps.APIKey)
		if err != nil {
			logger.Warn("failed to initialize routing provider", zap.Error(err))
		} else {
			provider = googleProvider
			logger.Info("routing provider enabled")
		}
	}

	// Initialize services.
	surgeCfg := service.DefaultSurgeConfig()
	surgeCfg.RadiusKm = cfg.Dispatch.SurgeRadiusKm
	surgeCfg.MaxMultiplier = cfg.Dispatch.MaxSurge
	surgeService := service.NewSurgeService(locationStore, rideRepo, surgeCfg, logger)
	fareService := service.NewFareService(tenantRepo, provider, surgeService, logger)
	searchService := service.NewDriverSearchService(locationStore, cacheStore, driverRepo,
		cfg.Dispatch.SearchRadiusKm, cfg.Dispatch.MaxCandidates, logger)
	dispatchService := service.NewDispatchService(rideRepo, searchService, assignmentStore,
		lockStore, cacheStore, publisher, cfg.Dispatch.AcceptanceWindow, logger)
	rideService := service.NewRideService(rideRepo, driverRepo, tenantRepo,
		fareService, dispatchService, publisher, logger)
	driverService := service.NewDriverService(locationStore, cacheStore, driverRepo, logger)

	// Initialize handlers.
	rideHandler := handler.NewRideHandler(rideService, fareService)
	driverHandler := handler.NewDriverHandler(driverService, searchService)
	tenantHandler := handler.NewTenantHandler(tenantRepo)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:   rideHandler,
		DriverHandler: driverHandler,
		TenantHandler: tenantHandler,
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func newLogger(cfg config.LoggingConfig) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if level, err := zap.ParseAtomicLevel(cfg.Level); err == nil {
		zapCfg.Level = level
	}
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
