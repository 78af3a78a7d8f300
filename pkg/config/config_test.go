package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, CatalogSourcePostgres, cfg.Catalog.Source)
	assert.Equal(t, 2*time.Hour, cfg.Planner.SessionTTL)
	assert.Equal(t, 50000, cfg.Planner.MaxCandidates)
	assert.Equal(t, 12, cfg.Planner.MaxSelections)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CATALOG_SOURCE", " FILE ")
	v.Set("PLANNER_SESSION_TTL", "bogus")
	v.Set("PLANNER_MEMO_TTL", "90s")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := fromViper(v)
	assert.Equal(t, CatalogSourceFile, cfg.Catalog.Source)
	assert.Equal(t, 2*time.Hour, cfg.Planner.SessionTTL, "unparseable durations fall back")
	assert.Equal(t, 90*time.Second, cfg.Planner.MemoTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
