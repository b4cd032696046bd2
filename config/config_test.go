package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "file", cfg.CacheBackend)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("DOMAIN", "https://example.com/")
	t.Setenv("BACKOFFICE_EMAILS", "ops@example.com, ,chef@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "https://example.com", cfg.Domain)
	assert.Equal(t, []string{"ops@example.com", "chef@example.com"}, cfg.BackofficeEmails)
}

func TestRequireSecrets(t *testing.T) {
	cfg := &Config{SessionSecret: "s"}
	err := cfg.RequireSecrets()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.JWTSecret = "j"
	assert.NoError(t, cfg.RequireSecrets())
}
