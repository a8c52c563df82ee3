package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campusops/tenant-guard/internal/infra/config"
	"github.com/campusops/tenant-guard/internal/infra/telemetry"
	"github.com/campusops/tenant-guard/internal/transport/http/handlers"
	"github.com/campusops/tenant-guard/internal/transport/http/middleware"
	"github.com/campusops/tenant-guard/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Policies  *usecase.PasswordPolicyService
	Lockouts  *usecase.LockoutService
	Mfa       *usecase.MfaService
	Whitelist *usecase.WhitelistService
	Quotas    *usecase.QuotaService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	Metrics     *telemetry.Metrics
	HTTPMetrics *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	r.Use(middleware.Logger(deps.Logger))
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	policyHandler := handlers.NewPolicyHandler(deps.Services.Policies, deps.Metrics)
	lockoutHandler := handlers.NewLockoutHandler(deps.Services.Lockouts, deps.Metrics)
	mfaHandler := handlers.NewMfaHandler(deps.Services.Mfa, deps.Metrics)
	whitelistHandler := handlers.NewWhitelistHandler(deps.Services.Whitelist)
	quotaHandler := handlers.NewQuotaHandler(deps.Services.Quotas)

	api := r.Group("/api/v1")
	api.Use(middleware.WhitelistGate(deps.Services.Whitelist, deps.Metrics, deps.Logger))
	api.Use(middleware.QuotaGate(deps.Services.Quotas, "api_requests", deps.Metrics, deps.Logger))
	{
		passwordGroup := api.Group("/passwords")
		passwordGroup.POST("/evaluate", policyHandler.EvaluatePassword)
		passwordGroup.POST("/history", policyHandler.RecordPassword)

		api.GET("/policies", policyHandler.GetPolicy)

		lockoutGroup := api.Group("/lockouts")
		lockoutGroup.POST("/attempts", lockoutHandler.RecordAttempt)
		lockoutGroup.GET("/:userID", lockoutHandler.Status)

		mfaGroup := api.Group("/mfa")
		mfaGroup.POST("/devices", mfaHandler.Enroll)
		mfaGroup.GET("/devices", mfaHandler.ListDevices)
		mfaGroup.GET("/status", mfaHandler.MfaStatus)
		mfaGroup.POST("/devices/:deviceID/verify", mfaHandler.Verify)

		api.GET("/whitelist/check", whitelistHandler.Check)
		api.GET("/quotas/check", quotaHandler.Check)
		api.POST("/quotas/usage", quotaHandler.Increment)
	}

	// Administrative surface stays outside the whitelist and quota gates so a
	// misconfigured tenant cannot lock its operators out.
	authMiddleware := middleware.RequireAuth(deps.Config.Auth.JWTSecret)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMiddleware)
	admin.Use(middleware.RequireRole("admin", "security_admin"))
	{
		admin.PUT("/policies", policyHandler.UpsertPolicy)
		admin.PATCH("/policies", policyHandler.PatchPolicy)

		admin.DELETE("/lockouts/:userID", lockoutHandler.Unlock)

		admin.DELETE("/mfa/devices/:deviceID", mfaHandler.DisableDevice)

		admin.GET("/whitelist/entries", whitelistHandler.List)
		admin.POST("/whitelist/entries", whitelistHandler.Create)
		admin.PATCH("/whitelist/entries/:entryID", whitelistHandler.Update)
		admin.DELETE("/whitelist/entries/:entryID", whitelistHandler.Delete)

		admin.GET("/quotas/limits", quotaHandler.ListLimits)
		admin.PUT("/quotas/limits", quotaHandler.SetLimit)
		admin.GET("/quotas/limits/:resourceType", quotaHandler.GetLimit)
		admin.PATCH("/quotas/limits/:resourceType", quotaHandler.PatchLimit)
		admin.GET("/quotas/usage-logs", quotaHandler.UsageLogs)
	}

	return r
}
