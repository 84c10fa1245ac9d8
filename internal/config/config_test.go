package config

import (
	"os"
	"path/filepath"
	"testing"

	"toursync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
app:
  name: toursync
database:
  path: data/queue.db
remote:
  address: localhost:6379
  device_id: device-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "toursync", cfg.App.Name)
	assert.Equal(t, "data/queue.db", cfg.Database.Path)
	assert.Equal(t, models.DefaultSyncIntervalSeconds, cfg.Sync.IntervalSeconds)
	assert.Equal(t, models.DefaultSyncCooldownSeconds, cfg.Sync.CooldownSeconds)
	assert.Equal(t, models.DefaultItemDelayMillis, cfg.Sync.ItemDelayMillis)
	assert.Equal(t, models.DefaultMaxRetries, cfg.Sync.MaxRetries)
	assert.Equal(t, "https://clients3.google.com/generate_204", cfg.Connectivity.ProbeURL)
	assert.Equal(t, models.DefaultProbeTimeoutSeconds, cfg.Connectivity.TimeoutSeconds)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("TEST_DEVICE_ID", "kiosk-7")

	path := writeConfigFile(t, `
database:
  path: data/queue.db
remote:
  address: ${TEST_REDIS_ADDR}
  device_id: ${TEST_DEVICE_ID}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Remote.Address)
	assert.Equal(t, "kiosk-7", cfg.Remote.DeviceID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Database: DatabaseConfig{Path: "data/queue.db"},
			Remote:   RemoteConfig{Address: "localhost:6379", DeviceID: "device-1"},
			Sync:     SyncConfig{IntervalSeconds: 60, CooldownSeconds: 30},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing database path", func(t *testing.T) {
		cfg := base()
		cfg.Database.Path = ""
		assert.EqualError(t, cfg.Validate(), "database path is required")
	})

	t.Run("missing remote address", func(t *testing.T) {
		cfg := base()
		cfg.Remote.Address = ""
		assert.EqualError(t, cfg.Validate(), "remote address is required")
	})

	t.Run("missing device id", func(t *testing.T) {
		cfg := base()
		cfg.Remote.DeviceID = ""
		assert.EqualError(t, cfg.Validate(), "remote device_id is required")
	})

	t.Run("cooldown exceeds interval", func(t *testing.T) {
		cfg := base()
		cfg.Sync.CooldownSeconds = 90
		assert.ErrorContains(t, cfg.Validate(), "must not exceed interval")
	})
}

func TestDurationHelpers(t *testing.T) {
	sync := SyncConfig{IntervalSeconds: 60, CooldownSeconds: 30, ItemDelayMillis: 250}
	assert.Equal(t, "1m0s", sync.Interval().String())
	assert.Equal(t, "30s", sync.Cooldown().String())
	assert.Equal(t, "250ms", sync.ItemDelay().String())

	conn := ConnectivityConfig{TimeoutSeconds: 5, CacheTTLSeconds: 5}
	assert.Equal(t, "5s", conn.Timeout().String())
	assert.Equal(t, "5s", conn.CacheTTL().String())
}
