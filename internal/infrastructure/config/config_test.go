package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Provider.PageSize)
	assert.Equal(t, 5, cfg.Provider.MaxPages)
	assert.Equal(t, 300*time.Millisecond, cfg.Provider.PageDelay)
	assert.Equal(t, 12, cfg.Recommend.TopN)
	assert.Equal(t, 10, cfg.Recommend.MinStrictResults)
	assert.Equal(t, 5, cfg.Recommend.MinTargetedPool)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 90*time.Second, cfg.Provider.PopulateTimeout)
	assert.Equal(t, 10, cfg.Search.CuisinePageSize)
	assert.Greater(t, cfg.Server.WriteTimeout, cfg.Server.RequestTimeout)
	require.NoError(t, validateConfig(cfg))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FOODOSCOPE_API_KEY", "test-provider-key")
	t.Setenv("APP_PROVIDER_MAX_PAGES", "3")
	t.Setenv("APP_RECOMMEND_TOP_N", "10")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "test-provider-key", cfg.Provider.APIKey)
	assert.Equal(t, 3, cfg.Provider.MaxPages)
	assert.Equal(t, 10, cfg.Recommend.TopN)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Server.Port = 0 }},
		{"bad page size", func(c *Config) { c.Provider.PageSize = 0 }},
		{"negative page delay", func(c *Config) { c.Provider.PageDelay = -time.Second }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }},
		{"no workers", func(c *Config) { c.Image.Workers = 0 }},
		{"bad top n", func(c *Config) { c.Recommend.TopN = 0 }},
		{"write timeout not above request timeout", func(c *Config) { c.Server.WriteTimeout = c.Server.RequestTimeout }},
		{"no request timeout", func(c *Config) { c.Server.RequestTimeout = 0 }},
		{"negative populate timeout", func(c *Config) { c.Provider.PopulateTimeout = -time.Second }},
		{"no search concurrency", func(c *Config) { c.Search.DetailConcurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcd...wxyz", maskAPIKey("abcdefghijklmnopqrstuvwxyz"))
}
