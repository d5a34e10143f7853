package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/transflow/transflow-api/api/swagger"
	"github.com/transflow/transflow-api/internal/handler"
	"github.com/transflow/transflow-api/internal/middleware"
	"github.com/transflow/transflow-api/internal/models"
	"github.com/transflow/transflow-api/internal/repository"
	"github.com/transflow/transflow-api/internal/service"
	"github.com/transflow/transflow-api/pkg/cache"
	"github.com/transflow/transflow-api/pkg/config"
	"github.com/transflow/transflow-api/pkg/database"
	"github.com/transflow/transflow-api/pkg/jobs"
	"github.com/transflow/transflow-api/pkg/logger"
	corsmiddleware "github.com/transflow/transflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/transflow/transflow-api/pkg/middleware/requestid"
)

// @title Transflow API
// @version 1.0.0
// @description Document lock and translation workflow service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Lock-status views fall back to direct reads without Redis.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	lockRepo := repository.NewLockRepository(db)
	handoverRepo := repository.NewHandoverRepository(db)
	versionRepo := repository.NewVersionRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	auditSvc := service.NewAuditService(userRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "transflow-api",
	})
	lockSvc := service.NewLockService(lockRepo, documentRepo, userRepo, cacheRepo, cfg.Workflow.LockStatusCacheTTL, metricsSvc, auditSvc, logr)
	documentSvc := service.NewDocumentService(documentRepo, lockRepo, metricsSvc, validate, logr)
	handoverSvc := service.NewHandoverService(handoverRepo, documentRepo, logr)
	workflowSvc := service.NewWorkflowService(lockRepo, lockSvc, documentRepo, versionRepo, userRepo, handoverSvc, auditSvc, metricsSvc, validate, cfg.Workflow.AllowAnonymous, logr)
	reviewSvc := service.NewReviewService(reviewRepo, documentRepo, versionRepo, auditSvc, metricsSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc, workflowSvc)
	lockHandler := handler.NewLockHandler(lockSvc, workflowSvc)
	handoverHandler := handler.NewHandoverHandler(handoverSvc)
	reviewHandler := handler.NewReviewHandler(reviewSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.Timeout(cfg.Workflow.OperationTimeout))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	docs := api.Group("/documents")
	{
		docs.GET("", documentHandler.List)
		docs.GET("/:id", documentHandler.Get)
		docs.POST("", middleware.JWT(authSvc), documentHandler.Create)
		docs.PUT("/:id", middleware.JWT(authSvc), documentHandler.Update)
		docs.DELETE("/:id", middleware.JWT(authSvc), middleware.RequireAdmin(), documentHandler.Delete)
		docs.POST("/:id/ready", middleware.JWT(authSvc), documentHandler.MarkReady)

		docs.GET("/:id/versions", documentHandler.ListVersions)
		docs.POST("/:id/versions", middleware.OptionalJWT(authSvc), documentHandler.CreateVersion)

		// Lock routes carry OptionalJWT so the development anonymous
		// fallback can resolve callers; acquire itself still requires
		// identity.
		docs.POST("/:id/lock", middleware.JWT(authSvc), lockHandler.Acquire)
		docs.DELETE("/:id/lock", middleware.OptionalJWT(authSvc), lockHandler.Release)
		docs.GET("/:id/lock-status", middleware.OptionalJWT(authSvc), lockHandler.Status)
		docs.PUT("/:id/progress", middleware.OptionalJWT(authSvc), lockHandler.SaveProgress)
		docs.POST("/:id/handover", middleware.OptionalJWT(authSvc), lockHandler.Handover)
		docs.POST("/:id/complete", middleware.OptionalJWT(authSvc), lockHandler.CompleteTranslation)

		docs.GET("/:id/handovers", handoverHandler.History)
		docs.GET("/:id/handovers/latest", handoverHandler.Latest)
		docs.GET("/:id/handovers/export", middleware.JWT(authSvc), handoverHandler.Export)
	}

	api.GET("/handovers/mine", middleware.JWT(authSvc), handoverHandler.Mine)

	reviews := api.Group("/reviews", middleware.JWT(authSvc))
	{
		reviews.GET("", reviewHandler.List)
		reviews.GET("/:id", reviewHandler.Get)
		reviews.POST("", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleReviewer), reviewHandler.Create)
		reviews.PUT("/:id", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleReviewer), reviewHandler.Update)
		reviews.POST("/:id/approve", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleReviewer), reviewHandler.Approve)
		reviews.POST("/:id/reject", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleReviewer), reviewHandler.Reject)
		reviews.POST("/:id/publish", middleware.RequireAdmin(), reviewHandler.Publish)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireAdmin())
	{
		admin.DELETE("/documents/:id/lock", lockHandler.ForceRelease)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
	logr.Info("stopped")
}
