package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "veriscan.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Validation.MaxConsecutiveFailures)
	assert.Equal(t, 5000, cfg.Validation.MaxFetchLimit)
	assert.True(t, cfg.Validation.BrowserHeadless)
	assert.Equal(t, time.Second, cfg.Validation.PollInterval)
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment = "production"

[redis]
addr = "redis.internal:6379"
db = 2

[validation]
max_consecutive_failures = 4

[results]
dir = "/data/results"

[notify]
webhook_url = "https://hooks.slack.com/services/T0/B0/x"
failure_only = true

[scheduler]
enabled = true

[scheduler.schedules]
oliveyoung = "0 3 * * *"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 4, cfg.Validation.MaxConsecutiveFailures)
	assert.Equal(t, "/data/results", cfg.Results.Dir)
	assert.True(t, cfg.Notify.FailureOnly)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.Schedules["oliveyoung"])

	// Untouched sections keep their defaults.
	assert.Equal(t, "./platforms", cfg.Platforms.Dir)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[redis]
addr = "redis.internal:6379"
`)
	t.Setenv("REDIS_ADDR", "redis.override:6379")
	t.Setenv("DATABASE_URL", "postgres://veriscan@db/catalog")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis.override:6379", cfg.Redis.Addr)
	assert.Equal(t, "postgres://veriscan@db/catalog", cfg.Database.URL)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidZeroesAreNormalized(t *testing.T) {
	path := writeConfig(t, `
[validation]
max_consecutive_failures = -1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Validation.MaxConsecutiveFailures)
}
