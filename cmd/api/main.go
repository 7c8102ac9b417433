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

	_ "github.com/campushq/edu-portal-api/api/swagger"
	"github.com/campushq/edu-portal-api/internal/handler"
	"github.com/campushq/edu-portal-api/internal/middleware"
	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/internal/repository"
	"github.com/campushq/edu-portal-api/internal/service"
	"github.com/campushq/edu-portal-api/pkg/cache"
	"github.com/campushq/edu-portal-api/pkg/config"
	"github.com/campushq/edu-portal-api/pkg/database"
	"github.com/campushq/edu-portal-api/pkg/logger"
	corsmiddleware "github.com/campushq/edu-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/edu-portal-api/pkg/middleware/requestid"
)

// @title Edu Portal API
// @version 0.1.0
// @description Credential authentication, session lifecycle and roster management
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, roster caching disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	auditSvc := service.NewAuditService(userRepo, cfg.Audit, logr)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, auditSvc, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr, auditSvc)
	facultySvc := service.NewFacultyService(userRepo, cacheRepo, validate, logr, auditSvc, cfg.Roster.CacheTTL)
	studentSvc := service.NewStudentService(userRepo, cacheRepo, validate, logr, auditSvc, cfg.Roster.CacheTTL)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	facultyHandler := handler.NewFacultyHandler(facultySvc, metricsSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
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
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.Auth(authSvc, metricsSvc), authHandler.Me)
		auth.PUT("/password", middleware.Auth(authSvc, metricsSvc), authHandler.ChangePassword)
	}

	authed := api.Group("")
	authed.Use(middleware.Auth(authSvc, metricsSvc))

	users := authed.Group("/users")
	{
		users.GET("", middleware.RequireRoles(models.RoleAdmin), userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.Self), userHandler.Get)
		users.PUT("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.Self), userHandler.UpdateProfile)
		users.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), userHandler.Delete)
	}

	faculty := authed.Group("/faculty")
	faculty.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		faculty.GET("", facultyHandler.List)
		faculty.POST("", facultyHandler.Create)
		faculty.PUT("/:id", facultyHandler.Update)
		faculty.DELETE("/:id", facultyHandler.Delete)
		faculty.GET("/export", facultyHandler.Export)
	}

	students := authed.Group("/students")
	students.Use(middleware.RequireRoles(models.RoleAdmin))
	{
		students.GET("", studentHandler.List)
		students.POST("", studentHandler.Create)
		students.PUT("/:id", studentHandler.Update)
		students.DELETE("/:id", studentHandler.Delete)
		students.GET("/export", studentHandler.Export)
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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
