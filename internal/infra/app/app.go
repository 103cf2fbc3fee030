package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/GreenityClub/Unitree-sub000/internal/infra/config"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/database"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/events"
	kafkainfra "github.com/GreenityClub/Unitree-sub000/internal/infra/kafka"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/logger"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/rabbitmq"
	redisinfra "github.com/GreenityClub/Unitree-sub000/internal/infra/redis"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/security"
	"github.com/GreenityClub/Unitree-sub000/internal/infra/telemetry"
	postgresrepo "github.com/GreenityClub/Unitree-sub000/internal/repository/postgres"
	redisrepo "github.com/GreenityClub/Unitree-sub000/internal/repository/redis"
	transportgrpc "github.com/GreenityClub/Unitree-sub000/internal/transport/grpc"
	grpcinterceptors "github.com/GreenityClub/Unitree-sub000/internal/transport/grpc/interceptors"
	"github.com/GreenityClub/Unitree-sub000/internal/transport/http/middleware"
	"github.com/GreenityClub/Unitree-sub000/internal/transport/http/routes"
	"github.com/GreenityClub/Unitree-sub000/internal/usecase"
)

const healthRefreshInterval = 15 * time.Second

// Application owns the process-wide resources and the transports built on them.
type Application struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	tracer *telemetry.TracerProvider
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	sink   closer

	sessions    *usecase.WifiSessionService
	stats       *usecase.StatsService
	consistency *usecase.ConsistencyService
	sweeper     *usecase.ReconciliationService
	wifiMetrics *telemetry.WifiMetrics

	engine     *gin.Engine
	grpcServer *transportgrpc.Server
	grpcAddr   string
}

type closer interface {
	Close() error
}

// New builds the API process: services plus the HTTP and gRPC transports.
func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	a, err := bootstrap(ctx, cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := security.NewTokenVerifier(cfg.JWT)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("init token verifier: %w", err)
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		a.release()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	deps := routes.Dependencies{
		Config:         cfg,
		Logger:         a.logger,
		Verifier:       verifier,
		HTTPMetrics:    httpMetrics,
		TracerProvider: a.tracer.TracerProvider(),
		Database:       a.pool,
		Services: routes.ServiceSet{
			Sessions:    a.sessions,
			Stats:       a.stats,
			Consistency: a.consistency,
		},
	}
	if a.redis != nil {
		deps.Cache = a.redis
	}
	a.engine = routes.Register(deps)

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{})
		if err != nil {
			a.release()
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}

		checks := map[string]transportgrpc.HealthCheck{"postgres": a.pool.Ping}
		if a.redis != nil {
			checks["redis"] = a.redis.HealthCheck
		}
		a.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Logger:         a.logger,
			Metrics:        grpcMetrics,
			TracerProvider: a.tracer.TracerProvider(),
			Checks:         checks,
		})
		a.grpcAddr = fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	}

	return a, nil
}

// NewWorker builds a process that only runs the reconciliation sweep.
func NewWorker(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	return bootstrap(ctx, cfg)
}

func bootstrap(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &Application{cfg: cfg, logger: log}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	a.tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	loc, err := cfg.Wifi.Location()
	if err != nil {
		a.release()
		return nil, fmt.Errorf("resolve wifi timezone: %w", err)
	}

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(cfg.Postgres.DSN(), "up"); err != nil {
			a.release()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		log.Info("database migrations applied")
	}

	a.pool, err = database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		a.release()
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	if cfg.Redis.Enabled {
		a.redis, err = redisinfra.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			a.release()
			return nil, fmt.Errorf("init redis: %w", err)
		}
	}

	sink, sinkCloser := newEventSink(cfg, log)
	a.sink = sinkCloser
	publisher := events.NewPublisher(sink, cfg.App, log)

	a.wifiMetrics, err = telemetry.NewWifiMetrics(telemetry.WifiMetricsOptions{})
	if err != nil {
		a.release()
		return nil, fmt.Errorf("init wifi metrics: %w", err)
	}

	store := postgresrepo.NewStore(a.pool, cfg.Postgres.Transactions)
	rules := usecase.SessionRules{
		MinimumSessionSeconds: cfg.Wifi.MinimumSessionSeconds,
		Location:              loc,
	}
	validator := usecase.NewAccessValidator(usecase.CampusConfig{
		IPPrefixes:    cfg.Wifi.IPPrefixes,
		BSSIDPrefixes: cfg.Wifi.BSSIDPrefixes,
		Latitude:      cfg.Wifi.CampusLatitude,
		Longitude:     cfg.Wifi.CampusLongitude,
		RadiusMeters:  cfg.Wifi.CampusRadiusMeters,
	})

	a.sessions = usecase.NewWifiSessionService(store, validator, rules, publisher, log).WithMetrics(a.wifiMetrics)
	a.stats = usecase.NewStatsService(store, rules, log)
	a.consistency = usecase.NewConsistencyService(store, publisher, log).
		WithPageSize(cfg.Stats.SyncPageSize).
		WithMetrics(a.wifiMetrics)
	a.sweeper = usecase.NewReconciliationService(store, rules, usecase.SweepConfig{
		Timeout:   cfg.Sweep.Timeout,
		BatchSize: cfg.Sweep.BatchSize,
		LockTTL:   cfg.Sweep.LockTTL,
	}, publisher, log).WithMetrics(a.wifiMetrics)

	if a.redis != nil {
		cache := redisrepo.NewStatsCacheRepository(a.redis.Client(), cfg.Redis.StatsPrefix)
		a.sessions.WithStatsCache(cache)
		a.stats.WithCache(cache, cfg.Stats.CacheTTL)
		a.consistency.WithStatsCache(cache)
		a.sweeper.WithStatsCache(cache).
			WithLock(redisrepo.NewSweepLockRepository(a.redis.Client(), cfg.Redis.LockPrefix))
	}

	return a, nil
}

// newEventSink picks the broker named by events.driver. A broker that cannot be reached at
// startup degrades to the log sink so session handling keeps working.
func newEventSink(cfg *config.AppConfig, log *zap.Logger) (events.Sink, closer) {
	switch strings.ToLower(strings.TrimSpace(cfg.Events.Driver)) {
	case "kafka":
		producer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using log sink", zap.Error(err))
			return events.NewLogSink(log), nil
		}
		return producer, producer
	case "rabbitmq":
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ, log)
		if err != nil {
			log.Warn("failed to init rabbitmq publisher, using log sink", zap.Error(err))
			return events.NewLogSink(log), nil
		}
		return publisher, publisher
	default:
		log.Info("event broker not configured, using log sink", zap.String("driver", cfg.Events.Driver))
		return events.NewLogSink(log), nil
	}
}

// Run serves HTTP and gRPC and, when enabled, runs the sweep until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.release()

	var background sync.WaitGroup
	defer background.Wait()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.cfg.Sweep.Enabled {
		background.Add(1)
		go func() {
			defer background.Done()
			a.sweeper.Run(runCtx, a.cfg.Sweep.Interval)
		}()
	}

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))

		background.Add(1)
		go func() {
			defer background.Done()
			a.grpcServer.WatchHealth(runCtx, healthRefreshInterval)
		}()
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
		defer a.grpcServer.GracefulStop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting wifi API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
		zap.Bool("sweep_enabled", a.cfg.Sweep.Enabled),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-grpcErrCh:
		return err
	}
}

// RunSweeper runs only the reconciliation loop until ctx is cancelled.
func (a *Application) RunSweeper(ctx context.Context) error {
	defer a.release()

	a.logger.Info("starting reconciliation worker",
		zap.Duration("interval", a.cfg.Sweep.Interval),
		zap.Duration("timeout", a.cfg.Sweep.Timeout),
	)
	a.sweeper.Run(ctx, a.cfg.Sweep.Interval)
	return nil
}

// SyncAll runs one consistency pass over every user.
func (a *Application) SyncAll(ctx context.Context) usecase.GlobalConsistencyReport {
	return a.consistency.SyncAll(ctx)
}

// Close releases the process resources without running anything.
func (a *Application) Close() {
	a.release()
}

func (a *Application) release() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("failed to close event sink", zap.Error(err))
		}
		a.sink = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.tracer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("failed to shut down tracer provider", zap.Error(err))
		}
		cancel()
		a.tracer = nil
	}
	_ = a.logger.Sync()
}
