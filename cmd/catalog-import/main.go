package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/noah-isme/course-planner-api/internal/catalog"
	"github.com/noah-isme/course-planner-api/internal/repository"
	"github.com/noah-isme/course-planner-api/internal/service"
	"github.com/noah-isme/course-planner-api/pkg/cache"
	"github.com/noah-isme/course-planner-api/pkg/config"
	"github.com/noah-isme/course-planner-api/pkg/database"
	"github.com/noah-isme/course-planner-api/pkg/logger"
	"github.com/noah-isme/course-planner-api/pkg/storage"
)

func main() {
	var (
		term        string
		coursesPath string
		lessonsPath string
		dryRun      bool
		warm        bool
		warmTerms   string
		timeout     time.Duration
	)

	flag.StringVar(&term, "term", "", "Term the files describe, e.g. 2025-fall")
	flag.StringVar(&coursesPath, "courses", "", "Path to the YAML courses document")
	flag.StringVar(&lessonsPath, "lessons", "", "Path to the CSV lessons table")
	flag.BoolVar(&dryRun, "dry-run", false, "Parse and report without writing to the database")
	flag.BoolVar(&warm, "warm", false, "Reload the imported term into Redis afterwards")
	flag.StringVar(&warmTerms, "warm-terms", "", "Comma-separated extra terms to reload with -warm")
	flag.DurationVar(&timeout, "timeout", time.Minute, "Import timeout")
	flag.Parse()

	if term == "" || coursesPath == "" || lessonsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	courses, err := os.ReadFile(coursesPath)
	if err != nil {
		log.Fatalf("failed to read courses: %v", err)
	}
	lessons, err := os.ReadFile(lessonsPath)
	if err != nil {
		log.Fatalf("failed to read lessons: %v", err)
	}

	if dryRun {
		ds, err := catalog.Parse(bytes.NewReader(courses), bytes.NewReader(lessons))
		if err != nil {
			log.Fatalf("invalid catalogue: %v", err)
		}
		printJSON(ds.Report)
		return
	}

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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	// A running API keeps catalogues in Redis; dropping them here makes the
	// import visible without a restart.
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, cached catalogues left in place", "error", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, "planner:", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, nil, cfg.Catalog.CacheTTL, logr, redisClient != nil)

	archive, err := storage.NewUploadArchive(cfg.Catalog.UploadDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload archive", "error", err)
	}

	repo := repository.NewCatalogRepository(db)
	svc := service.NewCatalogService(catalog.DBSource{Loader: repo}, repo, db, cacheSvc, archive, nil, logr, service.CatalogServiceConfig{
		CacheTTL:  cfg.Catalog.CacheTTL,
		UploadTTL: cfg.Catalog.UploadTTL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := svc.Import(ctx, term, courses, lessons)
	if err != nil {
		logr.Sugar().Fatalw("import failed", "term", term, "error", err)
	}
	printJSON(result)

	if warm && redisClient != nil {
		terms := append([]string{term}, splitTerms(warmTerms)...)
		if err := svc.Warm(ctx, terms); err != nil {
			logr.Sugar().Fatalw("warm failed", "terms", terms, "error", err)
		}
		logr.Sugar().Infow("catalogues warmed", "terms", terms)
	}
}

func splitTerms(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
