package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcosting "github.com/lotledger/backend/internal/application/costing"
	"github.com/lotledger/backend/internal/infrastructure/config"
	"github.com/lotledger/backend/internal/infrastructure/event"
	"github.com/lotledger/backend/internal/infrastructure/jobqueue"
	"github.com/lotledger/backend/internal/infrastructure/logger"
	"github.com/lotledger/backend/internal/infrastructure/persistence"
	"github.com/lotledger/backend/internal/infrastructure/runguard"
	"github.com/lotledger/backend/internal/infrastructure/strategy"
	"github.com/lotledger/backend/internal/infrastructure/telemetry"
)

const (
	logTimeFormat          = "2006-01-02T15:04:05.000Z07:00"
	telemetryFlushTimeout  = 10 * time.Second
	shutdownTimeout        = 30 * time.Second
	metricsCollectInterval = 5 * time.Minute
	dbPoolStatsInterval    = 15 * time.Second
)

func main() {
	// Load configuration. Config errors are reported through a bootstrap
	// logger since the real one is built from the config itself.
	cfg, err := config.Load()
	if err != nil {
		boot, _ := logger.New(logger.DefaultConfig())
		boot.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logTimeFormat,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting costing worker",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
	)

	ctx := context.Background()

	// Tracing: spans ship to the OTLP collector
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := tracerProvider.Shutdown(flushCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Metrics: same collector, pull model on the backend side
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := meterProvider.Shutdown(flushCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Continuous profiling. Compute passes are the hot path here, so the CPU
	// and allocation profiles carry the cost method labels set per pass.
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Telemetry.ProfilerEnabled,
		ServerAddress:     cfg.Telemetry.ProfilerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		ProfileCPU:        true,
		ProfileAllocSpace: true,
		ProfileInuseSpace: true,
		ProfileGoroutines: true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	if profiler.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	// Logs bridge: zap keeps writing to stdout and additionally exports
	// through the collector when telemetry is on
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryFlushTimeout)
		defer cancel()
		if err := loggerProvider.Shutdown(flushCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	if loggerProvider.IsEnabled() {
		log = telemetry.BridgeLogger(log, loggerProvider, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level))
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Query metrics and traces ride on GORM plugins
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            cfg.Telemetry.Enabled,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		PoolStatsInterval:  dbPoolStatsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Run guard keeps one compute pass per tenant across worker replicas.
	// Redis is preferred, the in-memory fallback only protects one process.
	guard, err := runguard.NewFactory(&cfg.Redis, cfg.Costing.LeaseTTL, runguard.WithLogger(log)).CreateGuard()
	if err != nil {
		log.Fatal("Failed to create run guard", zap.Error(err))
	}

	// Initialize repositories
	itemRepo := persistence.NewGormItemRepository(db.DB)
	entryRepo := persistence.NewGormItemEntryRepository(db.DB)
	transactionRepo := persistence.NewGormInventoryTransactionRepository(db.DB)
	jobQueue := persistence.NewGormComputeJobRepository(db.DB)
	settingsRepo := persistence.NewGormSettingsRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	// Cost strategies resolve their lot and transaction access through the
	// transaction scope, so a whole pass commits or rolls back as one unit
	strategies, err := strategy.NewRegistryWithDefaults(scope, log)
	if err != nil {
		log.Fatal("Failed to build cost strategy registry", zap.Error(err))
	}

	// Initialize application services
	sequencer := appcosting.NewLotSequencer(settingsRepo)
	recorder := appcosting.NewTransactionRecorder(transactionRepo, entryRepo, sequencer, scope)
	scheduler := appcosting.NewComputeScheduler(jobQueue, scope)
	scheduler.SetDelays(cfg.Costing.ScheduleDelay, cfg.Costing.RetryDelay)
	dispatcher := appcosting.NewCostComputeDispatcher(itemRepo, strategies)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	// Recorded or deleted transaction batches -> cost recompute per item
	recomputeHandler := appcosting.NewRecomputeHandler(scheduler, log)
	eventBus.Subscribe(recomputeHandler)

	log.Info("Event handlers registered",
		zap.Strings("recompute_events", recomputeHandler.EventTypes()),
	)

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	// Inject event bus into services that publish events
	recorder.SetEventPublisher(eventBus)
	scheduler.SetEventPublisher(eventBus)
	dispatcher.SetEventPublisher(eventBus)

	// Business metrics: compute pass counters plus periodic queue depth gauges
	businessMetrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:            meterProvider.Meter("lotledger.costing"),
		Logger:           log,
		JobQueueProvider: telemetry.NewGormJobQueueMetricsProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to initialize business metrics", zap.Error(err))
	}
	defer businessMetrics.Stop()

	dispatcher.SetBusinessMetrics(businessMetrics)
	recorder.SetBusinessMetrics(businessMetrics)

	if meterProvider.IsEnabled() {
		businessMetrics.StartPeriodicCollection(ctx, telemetry.NewGormTenantProvider(db.DB), metricsCollectInterval)
	}

	// Compute job runner: claims due jobs and runs them through the dispatcher
	runner := jobqueue.NewRunner(jobqueue.RunnerConfig{
		Enabled:              cfg.Runner.Enabled,
		PollInterval:         cfg.Runner.PollInterval,
		MaxConcurrentJobs:    cfg.Runner.MaxConcurrentJobs,
		ClaimBatchSize:       cfg.Runner.ClaimBatchSize,
		JobTimeout:           cfg.Runner.JobTimeout,
		LeaseRefreshInterval: cfg.Runner.LeaseRefreshInterval,
	}, jobQueue, dispatcher, scheduler, guard, log)

	if cfg.Runner.Enabled {
		if err := runner.Start(ctx); err != nil {
			log.Fatal("Failed to start compute job runner", zap.Error(err))
		}
	} else {
		log.Warn("Compute job runner disabled, scheduled jobs will not execute")
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down worker...")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := runner.Stop(stopCtx); err != nil {
		log.Error("Error stopping compute job runner", zap.Error(err))
	}

	log.Info("Worker exited gracefully")
}
