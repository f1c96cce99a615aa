package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.vprok.ru", cfg.Source.SiteURL)
	assert.Equal(t, "https://api.vprok.ru", cfg.Source.APIURL)
	assert.Equal(t, "spb", cfg.Source.CityCode)
	assert.Equal(t, 100, cfg.Source.PageLimit)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Candidate)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Navigation)
	assert.True(t, cfg.Render.Enabled)
	assert.Equal(t, 300*time.Millisecond, cfg.Render.ScrollInterval)
	assert.Equal(t, 5000, cfg.Render.ScrollMaxDistance)
	assert.Empty(t, cfg.Store.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 720*time.Hour, cfg.Harvest.Retention)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HARVEST_SOURCE_SITE_URL", "https://shop.test/")
	t.Setenv("HARVEST_SOURCE_CITY_CODE", "msk")
	t.Setenv("HARVEST_TIMEOUTS_CANDIDATE", "5s")
	t.Setenv("HARVEST_RENDER_ENABLED", "false")
	t.Setenv("HARVEST_RENDER_SCROLL_STEP", "250")
	t.Setenv("HARVEST_STORE_DRIVER", "sqlite")
	t.Setenv("HARVEST_STORE_DSN", "harvest.db")
	t.Setenv("HARVEST_HARVEST_CATEGORIES", "https://shop.test/catalog/1,https://shop.test/catalog/2")
	t.Setenv("HARVEST_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://shop.test", cfg.Source.SiteURL)
	assert.Equal(t, "msk", cfg.Source.CityCode)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Candidate)
	assert.False(t, cfg.Render.Enabled)
	assert.Equal(t, 250, cfg.Render.ScrollStep)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, []string{"https://shop.test/catalog/1", "https://shop.test/catalog/2"}, cfg.Harvest.Categories)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel())

	settings := cfg.HarvestSettings()
	assert.Equal(t, "https://shop.test", settings.SiteURL)
	assert.False(t, settings.RenderEnabled)
	assert.Equal(t, 5*time.Second, settings.CandidateTimeout)

	opts := cfg.RenderOptions()
	assert.Equal(t, 250, opts.Scroll.Step)
	assert.Equal(t, cfg.Source.UserAgent, opts.UserAgent)

	assert.Equal(t, "https://shop.test", cfg.ClientOptions().SiteURL)
	assert.Len(t, cfg.Schedule().Categories, 2)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store driver", map[string]string{"HARVEST_STORE_DRIVER": "mysql"}},
		{"store without dsn", map[string]string{"HARVEST_STORE_DRIVER": "postgres"}},
		{"relative site url", map[string]string{"HARVEST_SOURCE_SITE_URL": "vprok.ru"}},
		{"zero page limit", map[string]string{"HARVEST_SOURCE_PAGE_LIMIT": "0"}},
		{"zero candidate timeout", map[string]string{"HARVEST_TIMEOUTS_CANDIDATE": "0s"}},
		{"bad log level", map[string]string{"HARVEST_LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
