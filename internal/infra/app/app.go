package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/core/port"
	"github.com/campusops/tenant-guard/internal/infra/config"
	"github.com/campusops/tenant-guard/internal/infra/database"
	kafkainfra "github.com/campusops/tenant-guard/internal/infra/kafka"
	"github.com/campusops/tenant-guard/internal/infra/logger"
	redisinfra "github.com/campusops/tenant-guard/internal/infra/redis"
	"github.com/campusops/tenant-guard/internal/infra/security"
	"github.com/campusops/tenant-guard/internal/infra/telemetry"
	postgresrepo "github.com/campusops/tenant-guard/internal/repository/postgres"
	redisrepo "github.com/campusops/tenant-guard/internal/repository/redis"
	"github.com/campusops/tenant-guard/internal/transport/http/middleware"
	"github.com/campusops/tenant-guard/internal/transport/http/routes"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// Application bundles the wired service graph and its lifecycle.
type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init argon2 hasher: %w", err)
	}

	totp := security.NewTOTPStrategy(cfg.Mfa.Issuer)
	if cfg.Mfa.Skew > 0 {
		totp = totp.WithSkew(cfg.Mfa.Skew)
	}

	repos := postgresrepo.NewRepositories(pool)

	cacheTTL := cfg.Whitelist.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	whitelistCache := redisrepo.NewWhitelistCache(redisClient.Client(), "guard:whitelist", cacheTTL)

	var eventPublisher port.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			eventPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			eventPublisher = kafkainfra.NewEventPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka event publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		eventPublisher = kafkainfra.NewStubPublisher(log)
	}

	policyService := usecase.NewPasswordPolicyService(repos.Policies, repos.PasswordHistory, hasher, eventPublisher, log)
	lockoutService := usecase.NewLockoutService(repos.Policies, repos.FailedAttempts, repos.Lockouts, eventPublisher, log).
		WithUnitOfWork(repos.LockoutTx)
	mfaService := usecase.NewMfaService(repos.MfaDevices, repos.MfaAttempts, totp, hasher, eventPublisher, log)
	whitelistService := usecase.NewWhitelistService(repos.Whitelist, whitelistCache, eventPublisher, log)
	quotaService := usecase.NewQuotaService(repos.Quotas, eventPublisher, log).
		WithUnitOfWork(repos.QuotaTx)

	metrics := telemetry.NewMetrics()

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		Metrics:     metrics,
		HTTPMetrics: httpMetrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Policies:  policyService,
			Lockouts:  lockoutService,
			Mfa:       mfaService,
			Whitelist: whitelistService,
			Quotas:    quotaService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}, nil
}

// Run serves HTTP until the context is cancelled, then shuts down cleanly.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.tracer.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting guard API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
