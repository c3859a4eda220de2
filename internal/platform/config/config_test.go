package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 8*time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 300.0, cfg.Layout.RootSpacing)
	assert.Equal(t, 200.0, cfg.Layout.SiblingSpacing)
	assert.Equal(t, 150.0, cfg.Layout.LevelHeight)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 5, cfg.Auth.LoginMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Auth.LoginLockoutWindow)
}

func TestFromEnvReadsDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORGANOGRAMA_ADDR=:9999\nKAFKA_BROKERS=a:9092,b:9092\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ORGANOGRAMA_ADDR")
		os.Unsetenv("KAFKA_BROKERS")
	})

	cfg, err := FromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestValidate(t *testing.T) {
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "admin@om.mil")
	_, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set together")
}

func TestValidateLockout(t *testing.T) {
	t.Setenv("LOGIN_MAX_ATTEMPTS", "-1")
	_, err := FromEnv(filepath.Join(t.TempDir(), "absent.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOGIN_MAX_ATTEMPTS")
}
