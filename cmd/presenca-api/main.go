package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/presenca-api/api/swagger"
	"github.com/noah-isme/presenca-api/internal/handler"
	"github.com/noah-isme/presenca-api/internal/middleware"
	"github.com/noah-isme/presenca-api/internal/repository"
	"github.com/noah-isme/presenca-api/internal/routes"
	"github.com/noah-isme/presenca-api/internal/service"
	"github.com/noah-isme/presenca-api/pkg/cache"
	"github.com/noah-isme/presenca-api/pkg/config"
	"github.com/noah-isme/presenca-api/pkg/database"
	"github.com/noah-isme/presenca-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/presenca-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/presenca-api/pkg/middleware/requestid"
)

// @title Presenca API
// @version 1.0.0
// @description Student roster and attendance records
// @BasePath /
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, student cache disabled", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(client, "presenca")
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cacheRepo != nil)

	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	students := service.NewStudentService(studentRepo, attendanceRepo, cfg.Students, cacheSvc, metrics, validator.New(), logr)
	if err := students.PurgeCache(ctx); err != nil {
		logr.Sugar().Warnw("student cache purge failed", "error", err)
	}
	attendance := service.NewAttendanceService(attendanceRepo, students, cfg.Attendance, metrics, logr)
	reports := service.NewExportService(attendance, students, logr, nil, nil)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/swagger"))

	routes.SetupRoutes(r, cfg.APIPrefix, routes.Handlers{
		Students:   handler.NewStudentHandler(students),
		Attendance: handler.NewAttendanceHandler(attendance, reports),
		Metrics:    handler.NewMetricsHandler(metrics, db),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting",
			"addr", srv.Addr,
			"env", cfg.Env,
			"timezone", cfg.Attendance.Location.String(),
			"delete_policy", cfg.Students.DeletePolicy,
			"one_per_day", cfg.Attendance.OnePerDay,
			"cache", cacheSvc.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down", zap.Duration("timeout", cfg.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
