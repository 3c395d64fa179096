package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/gallery/internal/auth"
	"github.com/utafrali/gallery/internal/config"
	"github.com/utafrali/gallery/internal/event"
	handler "github.com/utafrali/gallery/internal/handler/http"
	"github.com/utafrali/gallery/internal/repository/postgres"
	redisrepo "github.com/utafrali/gallery/internal/repository/redis"
	"github.com/utafrali/gallery/internal/service"
	"github.com/utafrali/gallery/migrations"
	"github.com/utafrali/gallery/pkg/database"
	"github.com/utafrali/gallery/pkg/health"
	pkgkafka "github.com/utafrali/gallery/pkg/kafka"
	"github.com/utafrali/gallery/pkg/middleware"
	"github.com/utafrali/gallery/pkg/tracing"
)

// App wires together all dependencies and runs the gallery service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
	stopBackground context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	a.tracerShutdown, err = tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	a.pool, err = database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, a.pool, cfg.ServiceName); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, a.pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThreshold > 0 {
		database.SetSlowQueryLogging(cfg.SlowQueryThreshold, logger)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.pool.Ping(ctx)
	})

	// Token codec and password hashing.
	codec, err := auth.NewCodec(auth.TokenConfig{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessExpiry,
		RefreshTTL:    cfg.JWTRefreshExpiry,
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		return nil, err
	}
	hasher, err := auth.NewPasswordHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	// Optional Redis login throttle.
	var throttle service.LoginThrottle = service.NoopThrottle{}
	if cfg.RedisEnabled {
		a.redis, err = database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		attempts := redisrepo.NewLoginAttempts(a.redis, cfg.LoginAttemptWindow)
		healthHandler.RegisterNonCritical("redis", attempts.Ping)
		throttle = attempts
		logger.Info("login throttle enabled", slog.String("addr", cfg.Redis().Addr()))
	}

	// Optional Kafka events.
	var events service.EventPublisher = event.Noop{}
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		events = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// File storage.
	files, err := newStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if files.ping != nil {
		healthHandler.RegisterCritical("storage", files.ping)
	}
	logger.Info("image storage initialized", slog.String("backend", cfg.StorageBackend))

	// Build the dependency graph.
	userRepo := postgres.NewUserRepository(a.pool)
	imageRepo := postgres.NewImageRepository(a.pool)
	sessions := service.NewSessionService(userRepo, codec, hasher, events, logger,
		service.WithLoginThrottle(throttle, cfg.LoginMaxAttempts))
	gallery := service.NewGalleryService(imageRepo, files.store, events, logger)

	// HTTP router. The background context outlives NewApp and is cancelled
	// on shutdown.
	bgCtx, stop := context.WithCancel(context.Background())
	a.stopBackground = stop

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment

	router := handler.NewRouter(bgCtx, handler.RouterConfig{
		ServiceName: cfg.ServiceName,
		Sessions:    sessions,
		Gallery:     gallery,
		Tokens:      codec,
		Health:      healthHandler,
		Cookies: handler.CookieConfig{
			Secure:     cfg.SecureCookies(),
			SameSite:   cfg.SameSite(),
			Domain:     cfg.CookieDomain,
			AccessTTL:  codec.AccessTTL(),
			RefreshTTL: codec.RefreshTTL(),
		},
		CORS:               cors,
		AuthRateLimitRPS:   cfg.AuthRateLimitRPS,
		AuthRateLimitBurst: cfg.AuthRateLimitBurst,
		Uploads:            files.handler,
	}, logger)

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: HTTP server, tracer,
// Kafka producer, Redis, PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// Drain in-flight HTTP requests.
	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.HTTPShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases everything NewApp opened. It tolerates partially
// initialized apps.
func (a *App) closeResources() error {
	var errs []error

	if a.stopBackground != nil {
		a.stopBackground()
	}

	// Flush pending spans after the HTTP drain so request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	return errors.Join(errs...)
}
