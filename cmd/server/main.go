// Command server runs the inventory ledger HTTP API and the daily expiry sweep.
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
	appledger "github.com/pcshop/backend/internal/application/ledger"
	"github.com/pcshop/backend/internal/infrastructure/auth"
	"github.com/pcshop/backend/internal/infrastructure/cache"
	"github.com/pcshop/backend/internal/infrastructure/config"
	"github.com/pcshop/backend/internal/infrastructure/event"
	"github.com/pcshop/backend/internal/infrastructure/logger"
	"github.com/pcshop/backend/internal/infrastructure/persistence"
	"github.com/pcshop/backend/internal/infrastructure/scheduler"
	"github.com/pcshop/backend/internal/infrastructure/telemetry"
	"github.com/pcshop/backend/internal/interfaces/http/handler"
	"github.com/pcshop/backend/internal/interfaces/http/middleware"
	"github.com/pcshop/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.NewForEnvironment(cfg.App.Env, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// Telemetry providers install themselves as the otel globals
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	log := telemetry.BridgeLogger(baseLog, cfg.Telemetry.ServiceName, loggerProvider)
	defer func() { _ = log.Sync() }()

	log.Info("Starting inventory ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("db_driver", cfg.Database.Driver),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithIgnoreRecordNotFoundError(true),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if cfg.Database.Driver == "sqlite" {
		// PostgreSQL schemas are managed by cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate SQLite schema", zap.Error(err))
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbSystem := "postgresql"
		if cfg.Database.Driver == "sqlite" {
			dbSystem = "sqlite"
		}
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        dbSystem,
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Database tracing disabled", zap.Error(err))
		}
	}

	meter := meterProvider.Meter("pcshop/ledger")
	if cfg.Telemetry.Enabled {
		if sqlDB, err := db.DB.DB(); err == nil {
			dbMetrics, err := telemetry.NewDBMetrics(meter, sqlDB, telemetry.DBMetricsConfig{
				SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
			}, log)
			if err == nil {
				err = dbMetrics.Register(db.DB)
			}
			if err != nil {
				log.Warn("Database metrics disabled", zap.Error(err))
			} else {
				dbMetrics.StartPoolStatsCollection(ctx)
				defer dbMetrics.Stop()
			}
		}
	}

	batchCodeLocation, err := time.LoadLocation(cfg.Ledger.BatchCodeTimezone)
	if err != nil {
		log.Fatal("Invalid ledger batch code timezone", zap.String("timezone", cfg.Ledger.BatchCodeTimezone), zap.Error(err))
	}

	services := appledger.NewServices(appledger.Dependencies{
		EntryRepo:         persistence.NewGormLedgerEntryRepository(db.DB),
		BatchRepo:         persistence.NewGormBatchRepository(db.DB),
		MovementRepo:      persistence.NewGormMovementRepository(db.DB),
		Products:          persistence.NewGormProductCatalog(db.DB),
		Scope:             persistence.NewGormTransactionScope(db.DB),
		BatchCodeLocation: batchCodeLocation,
		Logger:            log,
	})

	ledgerMetrics, err := telemetry.NewLedgerMetrics(meter, log)
	if err != nil {
		log.Fatal("Failed to register ledger metrics", zap.Error(err))
	}

	eventBus := event.NewInMemoryEventBus(log.Named("events"))
	metricsHandler := appledger.NewMetricsEventHandler(ledgerMetrics)
	eventBus.Subscribe(metricsHandler, metricsHandler.EventTypes()...)
	auditHandler := event.NewAuditLogHandler(log.Named("audit"))
	eventBus.Subscribe(auditHandler, auditHandler.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	services.SetEventPublisher(eventBus)

	lockFactory := cache.NewLockFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	)
	defer func() { _ = lockFactory.Close() }()

	var sweepTrigger *scheduler.DailyTrigger
	if cfg.Sweep.Enabled {
		sweepTrigger = startSweepTrigger(ctx, cfg.Sweep, services.Sweeper, lockFactory, ledgerMetrics, log)
	}

	middleware.SetupValidator()
	jwtService := auth.NewJWTService(cfg.JWT)
	if cfg.JWT.RequireAuth && !jwtService.Enabled() {
		log.Fatal("JWT secret is required when auth is enforced")
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.HTTPMetrics(meter, log),
	)

	apiVersion := "v1"
	r := router.NewRouter(engine,
		router.WithAPIVersion(apiVersion),
		router.WithMiddleware(
			middleware.JWTAuth(middleware.JWTMiddlewareConfig{
				Validator:   jwtService,
				RequireAuth: cfg.JWT.RequireAuth,
				SkipPaths:   []string{"/api/" + apiVersion + "/health"},
				Logger:      log.Named("auth"),
			}),
			middleware.SpanEnricher(),
		),
	)
	router.RegisterAPI(r, router.Handlers{
		Ledger:  handler.NewLedgerHandler(services.Workflow, services.Sweeper),
		Batches: handler.NewBatchHandler(services.Allocator, services.Batches),
		Health:  handler.NewHealthHandler(db),
	}).Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sweepTrigger != nil {
		if err := sweepTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping expiry sweep trigger", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tracerProvider.Shutdown,
		"meter":  meterProvider.Shutdown,
		"logger": loggerProvider.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down telemetry", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// startSweepTrigger schedules the daily expiry sweep. A failure to start
// is logged and the API keeps serving; the sweep stays available through
// the manual endpoint.
func startSweepTrigger(
	ctx context.Context,
	cfg config.SweepConfig,
	sweeper *appledger.ExpirySweeper,
	locks *cache.LockFactory,
	metrics scheduler.JobMetrics,
	log *zap.Logger,
) *scheduler.DailyTrigger {
	location, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Error("Invalid sweep timezone, expiry sweep not scheduled", zap.String("timezone", cfg.Timezone), zap.Error(err))
		return nil
	}

	opts := []scheduler.DailyTriggerOption{scheduler.WithJobMetrics(metrics)}
	lock, err := locks.CreateLock(ctx, cfg.LockKey, cfg.LockTTL)
	if err != nil {
		log.Warn("Expiry sweep runs without a distributed lock", zap.Error(err))
	} else {
		opts = append(opts, scheduler.WithLock(lock))
	}

	trigger, err := scheduler.NewDailyTrigger(scheduler.DailyTriggerConfig{
		Hour:          cfg.Hour,
		Minute:        cfg.Minute,
		CheckInterval: cfg.CheckInterval,
		Location:      location,
	}, sweeper, log.Named("sweep_trigger"), opts...)
	if err != nil {
		log.Error("Expiry sweep not scheduled", zap.Error(err))
		return nil
	}
	if err := trigger.Start(ctx); err != nil {
		log.Error("Failed to start expiry sweep trigger", zap.Error(err))
		return nil
	}

	log.Info("Expiry sweep scheduled",
		zap.Int("hour", cfg.Hour),
		zap.Int("minute", cfg.Minute),
		zap.String("timezone", location.String()),
	)
	return trigger
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	if len(cfg.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.CORSAllowHeaders
	}
	return cors
}
