package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "timeline.db", cfg.Database.Path)
	assert.Equal(t, 20, cfg.Timeline.PageSize)
	assert.Equal(t, "timeline-cache:events", cfg.Notify.Channel)
	assert.False(t, cfg.Notify.Enabled())
	assert.Equal(t, 5, cfg.Snapshot.Keep)
	assert.Equal(t, "local@rss", cfg.RSS.Account)
	assert.Empty(t, cfg.RSS.Feeds)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("TIMELINE_PAGE_SIZE", "50")
	t.Setenv("NOTIFY_REDIS_ADDR", "localhost:6379")
	t.Setenv("RSS_FEEDS", "https://a.example/feed,https://b.example/atom")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 50, cfg.Timeline.PageSize)
	assert.True(t, cfg.Notify.Enabled())
	assert.Equal(t, []string{"https://a.example/feed", "https://b.example/atom"}, cfg.RSS.Feeds)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LOG_LEVEL=debug\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LOG_LEVEL") })

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := LoadConfig(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DRIVER")
}
