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
	"github.com/go-playground/validator/v10"

	"github.com/edtsync/edt-sync-api/internal/handler"
	"github.com/edtsync/edt-sync-api/internal/middleware"
	"github.com/edtsync/edt-sync-api/internal/push"
	"github.com/edtsync/edt-sync-api/internal/repository"
	"github.com/edtsync/edt-sync-api/internal/service"
	"github.com/edtsync/edt-sync-api/pkg/cache"
	"github.com/edtsync/edt-sync-api/pkg/config"
	"github.com/edtsync/edt-sync-api/pkg/database"
	"github.com/edtsync/edt-sync-api/pkg/logger"
	corsmiddleware "github.com/edtsync/edt-sync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edtsync/edt-sync-api/pkg/middleware/requestid"
)

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The snapshot cache is an optimisation; the gateway serves without it.
		logr.Sugar().Warnw("redis unavailable, snapshot caching disabled", "error", err)
		redisClient = nil
	}

	scheduleRepo := repository.NewScheduleRepository(db)
	supervisionRepo := repository.NewSupervisionRepository(db)
	timeSlotRepo := repository.NewTimeSlotRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)

	var snapshotCache *repository.SnapshotCache
	if cfg.Snapshot.CacheEnabled && redisClient != nil {
		snapshotCache = repository.NewSnapshotCache(redisClient, cfg.Snapshot.CacheTTL, logr)
	}

	metricsSvc := service.NewMetricsService()
	snapshotSvc := service.NewSnapshotService(scheduleRepo, supervisionRepo, timeSlotRepo, snapshotCache, metricsSvc, logr)
	authSvc := service.NewAuthService(cfg.JWT.Secret)

	registry := push.NewRegistry()
	dispatcher := push.NewDispatcher(registry, snapshotSvc, metricsSvc, cfg.Push.NotifyWorkers, logr)

	validate := validator.New()
	scheduleSvc := service.NewScheduleService(scheduleRepo, snapshotSvc, dispatcher, validate, logr)
	supervisionSvc := service.NewSupervisionService(supervisionRepo, timeSlotRepo, snapshotSvc, dispatcher, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	planningHandler := handler.NewPlanningHandler(snapshotSvc)
	courseHandler := handler.NewCourseHandler(scheduleSvc)
	supervisionHandler := handler.NewSupervisionHandler(supervisionSvc)
	directoryHandler := handler.NewDirectoryHandler(directoryRepo)
	timeSlotHandler := handler.NewTimeSlotHandler(timeSlotRepo)
	socketHandler := push.NewHandler(dispatcher, cfg.Push, logr)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))
	{
		api.GET("/teachers", directoryHandler.Teachers)
		api.GET("/classes", directoryHandler.Classes)
		api.GET("/rooms", directoryHandler.Rooms)
		api.GET("/timeslots", timeSlotHandler.List)
		api.PUT("/timeslots", timeSlotHandler.Replace)

		api.GET("/planning", planningHandler.Get)
		api.GET("/planning/export.pdf", planningHandler.ExportPDF)
		api.GET("/planning/export.csv", planningHandler.ExportCSV)

		api.POST("/courses", courseHandler.Create)
		api.PUT("/courses/:id", courseHandler.Update)
		api.POST("/courses/:id/cancel", courseHandler.Cancel)
		api.POST("/courses/:id/replace", courseHandler.Replace)
		api.DELETE("/courses/:id", courseHandler.Delete)
		api.POST("/courses/copy-week", courseHandler.CopyWeek)

		api.POST("/supervisions", supervisionHandler.Create)
		api.DELETE("/supervisions/:id", supervisionHandler.Delete)

		api.GET("/socket", socketHandler.Serve)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
