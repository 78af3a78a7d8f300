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
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-planner-api/api/swagger"
	"github.com/noah-isme/course-planner-api/internal/catalog"
	"github.com/noah-isme/course-planner-api/internal/handler"
	"github.com/noah-isme/course-planner-api/internal/repository"
	"github.com/noah-isme/course-planner-api/internal/service"
	"github.com/noah-isme/course-planner-api/pkg/cache"
	"github.com/noah-isme/course-planner-api/pkg/config"
	"github.com/noah-isme/course-planner-api/pkg/database"
	"github.com/noah-isme/course-planner-api/pkg/jobs"
	"github.com/noah-isme/course-planner-api/pkg/logger"
	"github.com/noah-isme/course-planner-api/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title Course Planner API
// @version 1.0.0
// @description Builds conflict-free weekly timetables from a term's course catalogue.
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	validate := validator.New()
	cacheRepo := repository.NewCacheRepository(redisClient, "planner:", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, redisClient != nil)

	catalogSvc, err := newCatalogService(cfg, db, cacheSvc, metricsSvc, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare catalogue service", "error", err)
	}

	queue := jobs.NewQueue("planner", jobs.QueueConfig{
		Workers:    cfg.Planner.Workers,
		BufferSize: cfg.Planner.QueueBuffer,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
		Observe:    metricsSvc.ObserveQueueWait,
	})
	queue.Handle(service.GenerationJobType, service.RunGenerationJob, jobs.WithRetries(-1))
	queue.Handle(service.CatalogWarmJobType, catalogSvc.WarmJob)
	queue.Start(ctx)
	metricsSvc.TrackQueue(queue.Pending)
	defer queue.Stop()

	plannerSvc := service.NewPlannerService(catalogSvc, queue, cacheSvc, metricsSvc, validate, logr, service.PlannerServiceConfig{
		SessionTTL:    cfg.Planner.SessionTTL,
		MaxSelections: cfg.Planner.MaxSelections,
		MaxCandidates: cfg.Planner.MaxCandidates,
		BatchSize:     cfg.Planner.BatchSize,
		ProgressEvery: cfg.Planner.ProgressEvery,
		MemoTTL:       cfg.Planner.MemoTTL,
		SweepInterval: cfg.Planner.SweepInterval,
		RandSeed:      cfg.Planner.DefaultRandSeed,
	})
	defer plannerSvc.Close()

	planRepo := repository.NewPlanRepository(db)
	signer := storage.NewSignedURLSigner(cfg.Plans.ShareSecret, cfg.Plans.ShareTTL)
	planSvc := service.NewPlanService(planRepo, plannerSvc, catalogSvc, signer, cacheSvc, validate, logr)

	tokenSvc := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	for _, term := range cfg.Catalog.PreloadTerms {
		if err := queue.Enqueue(jobs.Job{ID: "warm-" + term, Type: service.CatalogWarmJobType, Payload: term}); err != nil {
			logr.Sugar().Warnw("catalogue preload not queued", "term", term, "error", err)
		}
	}
	catalogSvc.StartCleanup(ctx)
	plannerSvc.StartSweeper(ctx)

	checkers := map[string]handler.ReadinessCheck{
		"database":         func(ctx context.Context) error { return db.PingContext(ctx) },
		"generation_queue": queue.Check,
	}
	if redisClient != nil {
		checkers["redis"] = cacheRepo.Ping
	}

	r := newRouter(cfg, logr, routerDeps{
		metrics:  metricsSvc,
		tokens:   tokenSvc,
		catalog:  handler.NewCatalogHandler(catalogSvc),
		planner:  handler.NewPlannerHandler(plannerSvc),
		plans:    handler.NewPlanHandler(planSvc, cfg.APIPrefix),
		observer: handler.NewMetricsHandler(metricsSvc, checkers),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func newCatalogService(cfg *config.Config, db *sqlx.DB, cacheSvc *service.CacheService, metrics *service.MetricsService, logr *zap.Logger) (*service.CatalogService, error) {
	svcCfg := service.CatalogServiceConfig{
		CacheTTL:        cfg.Catalog.CacheTTL,
		UploadTTL:       cfg.Catalog.UploadTTL,
		CleanupInterval: cfg.Catalog.CleanupInterval,
	}
	if cfg.Catalog.Source == config.CatalogSourceFile {
		source := catalog.FileSource{CoursesPath: cfg.Catalog.CoursesFile, LessonsPath: cfg.Catalog.LessonsFile}
		return service.NewCatalogService(source, nil, nil, cacheSvc, nil, metrics, logr, svcCfg), nil
	}

	archive, err := storage.NewUploadArchive(cfg.Catalog.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("prepare upload archive: %w", err)
	}
	repo := repository.NewCatalogRepository(db)
	return service.NewCatalogService(catalog.DBSource{Loader: repo}, repo, db, cacheSvc, archive, metrics, logr, svcCfg), nil
}
