package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Catalogue source kinds.
const (
	CatalogSourcePostgres = "postgres"
	CatalogSourceFile     = "file"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Planner  PlannerConfig
	Catalog  CatalogConfig
	Plans    PlansConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int

	// StatementTimeout caps every query server-side; zero leaves the server default.
	StatementTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PlannerConfig bounds planner sessions and generation runs.
type PlannerConfig struct {
	SessionTTL      time.Duration
	MaxSelections   int
	MaxCandidates   int
	BatchSize       int
	ProgressEvery   int
	Workers         int
	QueueBuffer     int
	MemoTTL         time.Duration
	SweepInterval   time.Duration
	DefaultRandSeed int64
}

// CatalogConfig selects where course catalogues are loaded from.
type CatalogConfig struct {
	Source          string
	CoursesFile     string
	LessonsFile     string
	CacheTTL        time.Duration
	UploadDir       string
	UploadTTL       time.Duration
	CleanupInterval time.Duration
	PreloadTerms    []string
}

// PlansConfig governs saved plans and their share links.
type PlansConfig struct {
	ShareSecret string
	ShareTTL    time.Duration
}

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Planner = PlannerConfig{
		SessionTTL:      parseDuration(v.GetString("PLANNER_SESSION_TTL"), 2*time.Hour),
		MaxSelections:   v.GetInt("PLANNER_MAX_SELECTIONS"),
		MaxCandidates:   v.GetInt("PLANNER_MAX_CANDIDATES"),
		BatchSize:       v.GetInt("PLANNER_BATCH_SIZE"),
		ProgressEvery:   v.GetInt("PLANNER_PROGRESS_EVERY"),
		Workers:         v.GetInt("PLANNER_WORKERS"),
		QueueBuffer:     v.GetInt("PLANNER_QUEUE_BUFFER"),
		MemoTTL:         parseDuration(v.GetString("PLANNER_MEMO_TTL"), 15*time.Minute),
		SweepInterval:   parseDuration(v.GetString("PLANNER_SWEEP_INTERVAL"), 5*time.Minute),
		DefaultRandSeed: v.GetInt64("PLANNER_RAND_SEED"),
	}

	source := strings.ToLower(strings.TrimSpace(v.GetString("CATALOG_SOURCE")))
	if source != CatalogSourceFile {
		source = CatalogSourcePostgres
	}
	cfg.Catalog = CatalogConfig{
		Source:          source,
		CoursesFile:     v.GetString("CATALOG_COURSES_FILE"),
		LessonsFile:     v.GetString("CATALOG_LESSONS_FILE"),
		CacheTTL:        parseDuration(v.GetString("CATALOG_CACHE_TTL"), 30*time.Minute),
		UploadDir:       v.GetString("CATALOG_UPLOAD_DIR"),
		UploadTTL:       parseDuration(v.GetString("CATALOG_UPLOAD_TTL"), 30*24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("CATALOG_CLEANUP_INTERVAL"), 6*time.Hour),
		PreloadTerms:    splitAndTrim(v.GetString("CATALOG_PRELOAD_TERMS")),
	}

	cfg.Plans = PlansConfig{
		ShareSecret: v.GetString("PLANS_SHARE_SECRET"),
		ShareTTL:    parseDuration(v.GetString("PLANS_SHARE_TTL"), 7*24*time.Hour),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_planner")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")

	v.SetDefault("ENABLE_REDIS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PLANNER_SESSION_TTL", "2h")
	v.SetDefault("PLANNER_MAX_SELECTIONS", 12)
	v.SetDefault("PLANNER_MAX_CANDIDATES", 50000)
	v.SetDefault("PLANNER_BATCH_SIZE", 2048)
	v.SetDefault("PLANNER_PROGRESS_EVERY", 512)
	v.SetDefault("PLANNER_WORKERS", 4)
	v.SetDefault("PLANNER_QUEUE_BUFFER", 64)
	v.SetDefault("PLANNER_MEMO_TTL", "15m")
	v.SetDefault("PLANNER_SWEEP_INTERVAL", "5m")
	v.SetDefault("PLANNER_RAND_SEED", 0)

	v.SetDefault("CATALOG_SOURCE", CatalogSourcePostgres)
	v.SetDefault("CATALOG_COURSES_FILE", "./data/courses.yaml")
	v.SetDefault("CATALOG_LESSONS_FILE", "./data/lessons.csv")
	v.SetDefault("CATALOG_CACHE_TTL", "30m")
	v.SetDefault("CATALOG_UPLOAD_DIR", "./uploads")
	v.SetDefault("CATALOG_UPLOAD_TTL", "720h")
	v.SetDefault("CATALOG_CLEANUP_INTERVAL", "6h")
	v.SetDefault("CATALOG_PRELOAD_TERMS", "")

	v.SetDefault("PLANS_SHARE_SECRET", "dev_share_secret")
	v.SetDefault("PLANS_SHARE_TTL", "168h")

	v.SetDefault("ENABLE_METRICS", true)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
