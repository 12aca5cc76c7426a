package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/unchk/agrt-api/api/swagger"
	"github.com/unchk/agrt-api/internal/handler"
	"github.com/unchk/agrt-api/internal/mailer"
	"github.com/unchk/agrt-api/internal/middleware"
	"github.com/unchk/agrt-api/internal/models"
	"github.com/unchk/agrt-api/internal/repository"
	"github.com/unchk/agrt-api/internal/service"
	"github.com/unchk/agrt-api/pkg/cache"
	"github.com/unchk/agrt-api/pkg/config"
	"github.com/unchk/agrt-api/pkg/database"
	"github.com/unchk/agrt-api/pkg/jobs"
	"github.com/unchk/agrt-api/pkg/logger"
	corsmiddleware "github.com/unchk/agrt-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unchk/agrt-api/pkg/middleware/requestid"
	"github.com/unchk/agrt-api/pkg/ratelimit"
	"github.com/unchk/agrt-api/pkg/storage"
)

// @title AGRT Recruitment API
// @version 1.0.0
// @description Job announcements, candidate applications and review workflow
// @BasePath /api/v1
// @schemes http

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
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close() //nolint:errcheck
	}

	blobStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to init document storage", zap.Error(err))
	}

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	yearRepo := repository.NewAcademicYearRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	passwordResetRepo := repository.NewPasswordResetRepository(db)

	// Services.
	mail := mailer.NewSendGridMailer(mailer.Config{
		APIKey:    cfg.Mail.SendGridAPIKey,
		FromEmail: cfg.Mail.FromEmail,
		FromName:  cfg.Mail.FromName,
	}, logr)

	notificationSvc := service.NewNotificationService(notificationRepo, mail, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	yearSvc := service.NewAcademicYearService(yearRepo, validate, logr)
	announcementSvc := service.NewAnnouncementService(announcementRepo, yearRepo, validate, logr)
	applicationSvc := service.NewApplicationService(applicationRepo, documentRepo, announcementRepo, userRepo, blobStore, notificationSvc, validate, logr)
	exportSvc := service.NewExportService(applicationRepo, userRepo, logr)

	resetLimiter := ratelimit.NewRedisLimiter(redisClient, cfg.PasswordReset.RequestLimit, cfg.PasswordReset.RequestWindow, "pwreset")
	passwordResetSvc := service.NewPasswordResetService(passwordResetRepo, userRepo, mail, resetLimiter, cfg.PasswordReset.OTPExpiry, validate, logr)

	metricsSvc := service.NewMetricsService()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc, passwordResetSvc)
	userHandler := handler.NewUserHandler(userSvc)
	yearHandler := handler.NewAcademicYearHandler(yearSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	applicationHandler := handler.NewApplicationHandler(applicationSvc, exportSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
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
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/password/forgot", authHandler.ForgotPassword)
		auth.POST("/password/reset", authHandler.ResetPassword)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	users := api.Group("/users", middleware.JWT(authSvc))
	{
		users.GET("/me", userHandler.Me)
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.POST("", middleware.RequireRoles(models.RoleAdmin), userHandler.Create)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), "SELF"), userHandler.Get)
		users.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Update)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	years := api.Group("/academic-years")
	{
		years.GET("", yearHandler.List)
		years.GET("/:id", yearHandler.Get)
		years.POST("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), yearHandler.Create)
		years.PUT("/:id", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), yearHandler.Update)
		years.DELETE("/:id", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), yearHandler.Delete)
	}

	announcements := api.Group("/announcements")
	{
		announcements.GET("", announcementHandler.List)
		announcements.GET("/:id", announcementHandler.Get)

		adminOnly := announcements.Group("", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
		adminOnly.POST("", announcementHandler.Create)
		adminOnly.PUT("/:id", announcementHandler.Update)
		adminOnly.POST("/:id/publish", announcementHandler.Publish)
		adminOnly.POST("/:id/close", announcementHandler.Close)
		adminOnly.DELETE("/:id", announcementHandler.Delete)
	}

	applications := api.Group("/applications", middleware.JWT(authSvc))
	{
		applications.POST("", middleware.RequireRoles(models.RoleCandidate), applicationHandler.Create)
		applications.GET("", applicationHandler.List)
		applications.GET("/export/csv", middleware.RequireRoles(models.RoleAdmin), applicationHandler.ExportCSV)
		applications.GET("/export/pdf", middleware.RequireRoles(models.RoleAdmin), applicationHandler.ExportPDF)
		applications.GET("/:id", applicationHandler.Get)
		applications.PUT("/:id", applicationHandler.Update)
		applications.DELETE("/:id", applicationHandler.Cancel)
		applications.PUT("/:id/status", middleware.RequireRoles(models.RoleAdmin), applicationHandler.Transition)
		applications.GET("/:id/complete", applicationHandler.Complete)
		applications.GET("/:id/history", applicationHandler.History)
		applications.POST("/:id/documents", applicationHandler.AddDocument)
		applications.DELETE("/:id/documents/:documentId", applicationHandler.RemoveDocument)
		applications.GET("/:id/documents/:documentId/file", applicationHandler.DownloadDocument)
	}

	notifications := api.Group("/notifications", middleware.JWT(authSvc))
	{
		notifications.GET("", notificationHandler.List)
		notifications.PUT("/:id/read", notificationHandler.MarkRead)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}
