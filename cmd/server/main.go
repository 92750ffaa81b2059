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

	appreservation "github.com/erp/reservation/internal/application/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/auth"
	"github.com/erp/reservation/internal/infrastructure/cache"
	"github.com/erp/reservation/internal/infrastructure/config"
	"github.com/erp/reservation/internal/infrastructure/event"
	"github.com/erp/reservation/internal/infrastructure/lock"
	"github.com/erp/reservation/internal/infrastructure/logger"
	"github.com/erp/reservation/internal/infrastructure/persistence"
	"github.com/erp/reservation/internal/infrastructure/scheduler"
	"github.com/erp/reservation/internal/infrastructure/storage"
	"github.com/erp/reservation/internal/infrastructure/telemetry"
	"github.com/erp/reservation/internal/interfaces/http/handler"
	"github.com/erp/reservation/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//	@title			Stock Reservation API
//	@version		1.0
//	@description	Time-bounded stock holds per product and warehouse, with expiration sweeps and archive export.

//	@contact.name	API Support
//	@contact.url	https://github.com/erp/reservation

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync(log)
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
	_ = logger.Sync(log)
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(log, "tracer provider", tracerProvider.Shutdown)

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	defer shutdownWithTimeout(log, "meter provider", meterProvider.Shutdown)

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Insecure:          cfg.Telemetry.Insecure,
		Level:             cfg.Telemetry.LogsLevel,
	}, log)
	if err != nil {
		return fmt.Errorf("init logger provider: %w", err)
	}
	defer shutdownWithTimeout(log, "logger provider", loggerProvider.Shutdown)
	log = loggerProvider.Bridge(log)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileContention: cfg.Profiling.ProfileContention,
	}, log)
	if err != nil {
		return fmt.Errorf("init profiler: %w", err)
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link spans to profiles", zap.Error(err))
		}
	}

	meter := meterProvider.Meter(serviceName)

	log.Info("Starting stock reservation service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("database", cfg.Database.Driver),
		zap.String("guard", cfg.Reservation.Guard),
	)

	// Storage
	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        db.Driver(),
	}, log); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}
	log.Info("Database connected successfully")

	var redisClient *redis.Client
	if cfg.Reservation.Guard == config.GuardRedis || cfg.Reservation.IdempotencyBackend == config.IdempotencyRedis {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	guard, err := newKeyGuard(cfg, db.Driver(), redisClient, log)
	if err != nil {
		return err
	}

	var idempotencyClient redis.UniversalClient
	if redisClient != nil {
		idempotencyClient = redisClient
	}
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Reservation, idempotencyClient,
		cache.WithLogger(log),
	).CreateStore()
	if err != nil {
		return err
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Events
	eventBus := event.NewInMemoryEventBus(log)
	if cfg.Kafka.Enabled {
		forwarder := event.NewKafkaEventForwarder(
			event.NewKafkaWriter(cfg.Kafka),
			event.NewReservationEventSerializer(),
			cfg.Kafka.Topic,
			log,
		)
		eventBus.Subscribe(forwarder)
		defer func() {
			if err := forwarder.Close(); err != nil {
				log.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		log.Info("Kafka event forwarding enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}
	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewReservationMetrics(meter)
	if err != nil {
		return fmt.Errorf("init reservation metrics: %w", err)
	}

	// Application services
	clock := shared.SystemClock{}
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB, db.Driver(), cfg.Database.LockTimeout)

	manager := appreservation.NewReservationManager(reservationRepo, txScope, guard, clock, appreservation.ManagerConfig{
		MaxTTL:         cfg.Reservation.MaxTTL,
		IdempotencyTTL: cfg.Reservation.IdempotencyTTL,
	}, log)
	manager.SetEventBus(eventBus)
	manager.SetIdempotencyStore(idempotencyStore)
	manager.SetMetrics(metrics)

	stockLedger := appreservation.NewStockLedgerService(txScope, guard, clock, log)
	stockLedger.SetEventBus(eventBus)
	availability := appreservation.NewAvailabilityCalculator(txScope, guard)

	sweeper := appreservation.NewExpirationSweeper(reservationRepo, manager, clock, cfg.Reservation.SweepBatchSize, log)
	sweeper.SetMetrics(metrics)

	triggerCfg := scheduler.DefaultSweepTriggerConfig()
	triggerCfg.Interval = cfg.Reservation.SweepInterval
	sweepTrigger, err := scheduler.NewSweepTrigger(triggerCfg, sweeper, log)
	if err != nil {
		return err
	}
	if cfg.Reservation.SweepEnabled {
		if err := sweepTrigger.Start(ctx); err != nil {
			return fmt.Errorf("start sweep trigger: %w", err)
		}
		defer func() {
			if err := sweepTrigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping sweep trigger", zap.Error(err))
			}
		}()
		log.Info("Expiration sweeps scheduled", zap.Duration("interval", triggerCfg.Interval))
	}

	archiver, err := newArchiver(ctx, cfg, reservationRepo, clock, log)
	if err != nil {
		return err
	}

	// HTTP
	checks := map[string]handler.HealthCheck{"database": db.Ping}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:        cfg.HTTP,
		Swagger:     cfg.Swagger,
		Telemetry:   cfg.Telemetry,
		Profiling:   profiler.IsEnabled(),
		JWTService:  auth.NewJWTService(cfg.JWT),
		Meter:       meter,
		Logger:      log,
		ServiceName: serviceName,
	}, router.Handlers{
		Reservation: handler.NewReservationHandler(manager, cfg.Reservation.DefaultTTL),
		Stock:       handler.NewStockHandler(availability, stockLedger),
		Admin:       handler.NewAdminHandler(sweepTrigger, archiver),
		Health:      handler.NewHealthHandler(checks, 0),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func newKeyGuard(cfg *config.Config, driver string, client *redis.Client, log *zap.Logger) (appreservation.KeyGuard, error) {
	switch cfg.Reservation.Guard {
	case config.GuardRedis:
		return lock.NewRedisKeyGuard(client, cfg.Reservation.LockTimeout, log), nil
	case config.GuardDatabase:
		if driver == config.DriverSQLite {
			return nil, fmt.Errorf("reservation.guard=database requires row locks, which sqlite does not support")
		}
		return lock.NewDatabaseKeyGuard(), nil
	default:
		return lock.NewLocalKeyGuard(cfg.Reservation.LockTimeout), nil
	}
}

// newArchiver returns nil when no archive destination is configured outside development
func newArchiver(
	ctx context.Context,
	cfg *config.Config,
	repo *persistence.GormReservationRepository,
	clock shared.Clock,
	log *zap.Logger,
) (handler.Archiver, error) {
	var objects appreservation.ObjectStorage
	switch {
	case cfg.Storage.Enabled:
		s3, err := storage.NewS3ObjectStorage(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		log.Info("Archive export to object storage enabled", zap.String("bucket", s3.Bucket()))
		objects = s3
	case cfg.App.Env == "development":
		log.Warn("Object storage disabled, archives are kept in memory")
		objects = storage.NewMemoryObjectStorage()
	default:
		return nil, nil
	}
	return appreservation.NewArchiveService(repo, objects, clock, cfg.Reservation.ArchivePrefix, log), nil
}

func shutdownWithTimeout(log *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error("Error shutting down "+name, zap.Error(err))
	}
}
