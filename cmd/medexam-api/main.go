package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/clinsg/medexam-api/api/swagger"
	"github.com/clinsg/medexam-api/internal/handler"
	internalmiddleware "github.com/clinsg/medexam-api/internal/middleware"
	"github.com/clinsg/medexam-api/internal/models"
	"github.com/clinsg/medexam-api/internal/repository"
	"github.com/clinsg/medexam-api/internal/service"
	"github.com/clinsg/medexam-api/pkg/cache"
	"github.com/clinsg/medexam-api/pkg/config"
	"github.com/clinsg/medexam-api/pkg/database"
	"github.com/clinsg/medexam-api/pkg/jobs"
	"github.com/clinsg/medexam-api/pkg/logger"
	corsmiddleware "github.com/clinsg/medexam-api/pkg/middleware/cors"
	reqidmiddleware "github.com/clinsg/medexam-api/pkg/middleware/requestid"
	"github.com/clinsg/medexam-api/pkg/storage"
)

// @title MedExam API
// @version 1.0.0
// @description Clinic medical examination report submission service
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userRepo := repository.NewUserRepository(db)
	reportRepo := repository.NewReportRepository(db)
	transmissionRepo := repository.NewTransmissionRepository(db)

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Reports.CacheEnabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, true)
		}
	}

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "medexam-api",
		SingleSession:      cfg.JWT.SingleSession,
	})
	userSvc := service.NewUserService(userRepo, nil, logr)

	submissionOpts := []service.SubmissionServiceOption{
		service.WithTransitionRecorder(metricsSvc),
		service.WithPolicyFlags(cfg.Policy.Flags),
	}

	var transmissionSvc *service.TransmissionService
	if cfg.Transmissions.Enabled {
		store, err := storage.NewLocalStorage(cfg.Transmissions.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init transmission storage", "error", err)
		}
		transmissionSvc = service.NewTransmissionService(transmissionRepo, store, service.TransmissionConfig{
			Workers:    cfg.Transmissions.WorkerConcurrency,
			MaxRetries: cfg.Transmissions.WorkerRetries,
			RetryDelay: cfg.Transmissions.RetryDelay,
		}, logr)
		transmissionSvc.Start(ctx)
		defer transmissionSvc.Stop()
		submissionOpts = append(submissionOpts, service.WithTransmissionDispatcher(transmissionSvc))
	}

	var exportJobSvc *service.ExportJobService
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignSecret, cfg.Exports.ResultTTL)
		exportJobRepo := repository.NewExportJobRepository(db)
		exportSvc := service.NewExportService(reportRepo, transmissionRepo, exportStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.ResultTTL,
		}, logr, nil, nil)
		exportWorker := service.NewExportWorker(exportJobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
		exportQueue := jobs.NewQueue("register-exports", exportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		exportQueue.Start(ctx)
		defer exportQueue.Stop()
		exportJobSvc = service.NewExportJobService(exportJobRepo, exportQueue, exportSvc, logr, service.ExportJobServiceConfig{
			ResultTTL:       cfg.Exports.ResultTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		exportJobSvc.RecoverPendingJobs(ctx)
		exportJobSvc.StartCleanup(ctx)
	}

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Reports:       reportRepo,
		Transmissions: transmissionRepo,
		Cache:         cacheSvc,
		Observer:      metricsSvc,
		Logger:        logr,
		Config:        service.DashboardServiceConfig{CacheTTL: cfg.Reports.CacheTTL},
	})
	submissionOpts = append(submissionOpts, service.WithCacheInvalidator(dashboardSvc))
	if cacheSvc != nil {
		submissionOpts = append(submissionOpts, service.WithHistoryCache(cacheSvc, cfg.Reports.CacheTTL))
	}

	submissionSvc := service.NewSubmissionService(reportRepo, userRepo, logr, submissionOpts...)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	var reportHandler *handler.ReportHandler
	if transmissionSvc != nil {
		reportHandler = handler.NewReportHandler(submissionSvc, transmissionSvc)
	} else {
		reportHandler = handler.NewReportHandler(submissionSvc, nil)
	}
	schemaHandler := handler.NewSchemaHandler()
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	var exportHandler *handler.ExportHandler
	if exportJobSvc != nil {
		exportHandler = handler.NewExportHandler(exportJobSvc)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", internalmiddleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/change-password", internalmiddleware.JWT(authSvc), authHandler.ChangePassword)
	auth.POST("/forgot-password", authHandler.ForgotPassword)
	auth.POST("/reset-password", authHandler.ResetPassword)
	auth.GET("/me", internalmiddleware.JWT(authSvc), authHandler.Me)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	users := secured.Group("/users")
	users.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
	users.GET("", userHandler.List)
	users.GET("/:id", userHandler.Get)
	users.POST("", userHandler.Create)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Delete)

	reports := secured.Group("/reports")
	reports.POST("", internalmiddleware.RequireRoles(models.RoleNurse, models.RoleDoctor), reportHandler.Create)
	reports.GET("", reportHandler.List)
	reports.GET("/:id", reportHandler.Get)
	reports.PUT("/:id", reportHandler.Save)
	reports.POST("/:id/submit", internalmiddleware.RequireRoles(models.RoleDoctor), reportHandler.Submit)
	// Doctors pass the gate too: the assigned doctor may correct and
	// re-route a report pending approval. The workflow layer enforces the
	// precise assigned-doctor check.
	reports.POST("/:id/route", internalmiddleware.RequireRoles(models.RoleNurse, models.RoleDoctor), reportHandler.Route)
	reports.POST("/:id/approve", internalmiddleware.RequireRoles(models.RoleDoctor), reportHandler.Approve)
	reports.POST("/:id/reject", internalmiddleware.RequireRoles(models.RoleDoctor), reportHandler.Reject)
	reports.POST("/:id/reopen", internalmiddleware.RequireRoles(models.RoleNurse, models.RoleDoctor), reportHandler.Reopen)
	reports.GET("/:id/transmissions", reportHandler.Transmissions)

	dashboard := secured.Group("/dashboard")
	dashboard.Use(internalmiddleware.WithResponseMeta())
	dashboard.GET("", internalmiddleware.RequireRoles(models.RoleAdmin), dashboardHandler.Overview)
	dashboard.GET("/queue", internalmiddleware.RequireRoles(models.RoleDoctor), dashboardHandler.Queue)

	secured.POST("/clinical/amt", reportHandler.EvaluateAMT)
	secured.GET("/schemas", schemaHandler.List)
	secured.GET("/schemas/:examType", schemaHandler.Get)
	secured.GET("/system/metrics", internalmiddleware.RequireRoles(models.RoleAdmin), metricsHandler.Summary)

	if exportHandler != nil {
		exports := secured.Group("/exports")
		exports.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
		exports.POST("", exportHandler.Create)
		exports.GET("/:id", exportHandler.Status)
		// Download links open in a browser tab, so auth is carried by the
		// signed token itself. OptionalJWT only attributes the audit entry.
		api.GET("/export/:token",
			internalmiddleware.OptionalJWT(authSvc),
			internalmiddleware.Audit(userRepo, models.AuditActionReportDownloaded, "exports"),
			exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
