package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, DriverBolt, cfg.StoreDriver)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "rental.events", cfg.RabbitMQQueue)
}

func TestLoadFromEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("PORT=9090\nRATE_LIMIT_BURST=7\n"), 0o600))

	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	unset(t, "PORT")
	unset(t, "RATE_LIMIT_BURST")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 7, cfg.RateLimitBurst)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
}

// unset clears key for the test so the .env file can supply it; t.Setenv
// restores the original value afterwards.
func unset(t *testing.T, key string) {
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, "unknown STORE_DRIVER")

	cfg := Config{StoreDriver: DriverBolt, BoltPath: "x.db", RateLimitRPS: 0, RateLimitBurst: 1, ShutdownTimeout: time.Second}
	assert.ErrorContains(t, cfg.Validate(), "rate limit")
}
