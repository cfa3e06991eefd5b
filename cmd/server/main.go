package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	entitlementapp "github.com/relaypoint/backend/internal/application/entitlement"
	"github.com/relaypoint/backend/internal/infrastructure/auth"
	"github.com/relaypoint/backend/internal/infrastructure/cache"
	"github.com/relaypoint/backend/internal/infrastructure/config"
	"github.com/relaypoint/backend/internal/infrastructure/identity"
	"github.com/relaypoint/backend/internal/infrastructure/logger"
	"github.com/relaypoint/backend/internal/infrastructure/persistence"
	"github.com/relaypoint/backend/internal/infrastructure/telemetry"
	"github.com/relaypoint/backend/internal/interfaces/http/handler"
	"github.com/relaypoint/backend/internal/interfaces/http/middleware"
	"github.com/relaypoint/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/relaypoint/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//	@title			RelayPoint Entitlement API
//	@version		1.0
//	@description	Quota and feature entitlement engine for RelayPoint tenants

//	@contact.name	API Support
//	@contact.url	https://github.com/relaypoint/backend
//	@contact.email	support@relaypoint.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	// Bridge zap to the OTEL collector so log records carry trace context
	logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := logsProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()
	if logsProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(logsProvider, cfg.Telemetry.ServiceName, logLevel(cfg.Log.Level))
		log = telemetry.BridgeLogger(log, otelCore)
	}

	log.Info("Starting RelayPoint Entitlement Engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize OpenTelemetry tracing (no-op when disabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
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
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry metrics
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

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

	// Register database query tracing (otelgorm)
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	// Initialize Redis-backed entitlement cache
	entCache, err := cache.NewRedisEntitlementCache(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cache.WithEntitlementCacheLogger(log))
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := entCache.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected successfully")

	// Upstream identity service used for account auto-provisioning
	identityProvider, err := identity.NewHTTPProvider(cfg.Identity)
	if err != nil {
		log.Fatal("Failed to initialize identity provider", zap.Error(err))
	}

	// Initialize repositories
	accountRepo := persistence.NewAccountRepository(db.DB)
	planRepo := persistence.NewPlanRepository(db.DB)
	subscriptionRepo := persistence.NewSubscriptionRepository(db.DB)
	quotaOverrideRepo := persistence.NewQuotaOverrideRepository(db.DB)
	featureOverrideRepo := persistence.NewFeatureOverrideRepository(db.DB)
	usageRepo := persistence.NewQuotaUsageRepository(db.DB)
	auditRepo := persistence.NewAuditLogRepository(db.DB)

	// Initialize application services
	auditService := entitlementapp.NewAuditService(auditRepo, log)
	resolverService := entitlementapp.NewResolverService(
		planRepo, subscriptionRepo, quotaOverrideRepo, featureOverrideRepo,
		entCache, cfg.Entitlement.CacheTTL, log,
	)
	usageService := entitlementapp.NewUsageService(usageRepo, subscriptionRepo, resolverService, auditService, log)
	adminService := entitlementapp.NewAdminService(
		planRepo, subscriptionRepo, quotaOverrideRepo, featureOverrideRepo,
		resolverService, usageService, auditService, log,
	)
	guardService := entitlementapp.NewTenantGuardService(
		accountRepo, planRepo, subscriptionRepo, identityProvider, auditService, log,
	)
	enforcerService := entitlementapp.NewEnforcerService(resolverService, usageService, usageRepo, log)
	gateService := entitlementapp.NewFeatureGateService(resolverService, log)

	// Entitlement decision metrics. A nil value is tolerated downstream,
	// so a metrics failure never blocks startup.
	var entMetrics *telemetry.EntitlementMetrics
	if em, err := telemetry.NewEntitlementMetrics(telemetry.EntitlementMetricsConfig{
		Meter:  meterProvider.Meter("relaypoint.entitlement"),
		Logger: log,
	}); err != nil {
		log.Warn("Failed to initialize entitlement metrics", zap.Error(err))
	} else {
		entMetrics = em
	}

	// JWT service for admin and service tokens
	jwtService := auth.NewJWTService(cfg.JWT)

	// Initialize HTTP handlers
	entitlementHandler := handler.NewEntitlementHandler(guardService, adminService, usageService)
	subscriptionHandler := handler.NewSubscriptionHandler(guardService, adminService)
	auditHandler := handler.NewAuditHandler(guardService, auditService, cfg.Entitlement.AuditPageSize)
	internalHandler := handler.NewInternalHandler(guardService, enforcerService, gateService, entMetrics)
	usageHandler := handler.NewUsageHandler(guardService, usageService)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. Tracing/Metrics - OpenTelemetry instrumentation
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanAnnotator())
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, entCache, log))

	// JWT authentication for API routes. System ping/info stay public.
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)

	// Swagger documentation endpoint
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, jwtMiddleware),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(jwtMiddleware)

	requireWrite := middleware.RequireScope(auth.ScopeEntitlementsWrite)
	requireUsageReport := middleware.RequireScope(auth.ScopeUsageReport)

	// Quota entitlements (admin surface)
	quotaRoutes := router.NewDomainGroup("quotas", "/quotas")
	quotaRoutes.GET("/:userId", entitlementHandler.GetQuotas)
	quotaRoutes.PUT("/:userId/:quotaType", requireWrite, entitlementHandler.SetQuotaOverride)
	quotaRoutes.DELETE("/:userId/:quotaType/override", requireWrite, entitlementHandler.RemoveQuotaOverride)
	quotaRoutes.POST("/:userId/reset", requireWrite, entitlementHandler.ResetQuotas)

	// Feature entitlements (admin surface)
	featureRoutes := router.NewDomainGroup("features", "/features")
	featureRoutes.GET("/:userId", entitlementHandler.GetFeatures)
	featureRoutes.PUT("/:userId/:featureName", requireWrite, entitlementHandler.SetFeatureOverride)
	featureRoutes.DELETE("/:userId/:featureName/override", requireWrite, entitlementHandler.RemoveFeatureOverride)

	// Subscription lifecycle (admin surface)
	subscriptionRoutes := router.NewDomainGroup("subscriptions", "/subscriptions")
	subscriptionRoutes.GET("/:userId", subscriptionHandler.GetSubscription)
	subscriptionRoutes.PUT("/:userId/plan", requireWrite, subscriptionHandler.AssignPlan)
	subscriptionRoutes.POST("/:userId/suspend", requireWrite, subscriptionHandler.Suspend)
	subscriptionRoutes.POST("/:userId/resume", requireWrite, subscriptionHandler.Resume)

	// Audit trail
	auditRoutes := router.NewDomainGroup("audit", "/audit")
	auditRoutes.GET("/:userId", auditHandler.ListAuditEntries)

	// Usage snapshots
	usageRoutes := router.NewDomainGroup("usage", "/usage")
	usageRoutes.GET("/:userId", usageHandler.GetUsage)

	// Internal enforcement surface. The message proxy calls these on the
	// hot path for every relayed message.
	internalRoutes := router.NewDomainGroup("internal", "/internal")
	internalRoutes.POST("/quota/reserve", internalHandler.ReserveQuota)
	internalRoutes.POST("/quota/release", internalHandler.ReleaseQuota)
	internalRoutes.POST("/quota/check", internalHandler.CheckQuota)
	internalRoutes.GET("/features/:userId/:feature", internalHandler.CheckFeature)
	internalRoutes.POST("/usage/report", requireUsageReport, usageHandler.ReportUsage)
	internalRoutes.POST("/usage/release", requireUsageReport, usageHandler.ReleaseUsage)

	// System routes with swagger-documented handlers
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(quotaRoutes).
		Register(featureRoutes).
		Register(subscriptionRoutes).
		Register(auditRoutes).
		Register(usageRoutes).
		Register(internalRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
// logLevel maps the configured log level string to a zapcore.Level,
// defaulting to info on anything unrecognized.
func logLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func healthHandler(db *persistence.Database, entCache *cache.RedisEntitlementCache, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		status := http.StatusOK
		dbState := "ok"
		redisState := "ok"

		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.String("component", "database"), zap.Error(err))
			dbState = "error"
			status = http.StatusServiceUnavailable
		}
		if err := entCache.Ping(c.Request.Context()); err != nil {
			reqLog.Warn("Health check failed", zap.String("component", "redis"), zap.Error(err))
			redisState = "error"
			status = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": dbState,
			"redis":    redisState,
		}
		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}
		c.JSON(status, body)
	}
}
