package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"POSTGRES_DSN", "AUTH_JWT_SECRET", "REDIS_DB", "TICKETS_DEFAULT_SLA_HOURS", "APP_PORT", "REDIS_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Empty(t, cfg.Postgres.DSN)
	assert.Equal(t, "migrations", cfg.Postgres.MigrationsDir)
	assert.True(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Auth.TokensEnabled())
	assert.Equal(t, 24, cfg.Tickets.DefaultSLAHours)
	assert.Equal(t, 20, cfg.Tickets.DefaultPageLimit)
	assert.Equal(t, 100, cfg.Tickets.MaxPageLimit)
	assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("TICKETS_DEFAULT_SLA_HOURS", "8")
	t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.True(t, cfg.Auth.TokensEnabled())
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL())
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 8, cfg.Tickets.DefaultSLAHours)
	assert.Zero(t, cfg.App.RequestTimeout())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("redis db", func(t *testing.T) {
		t.Setenv("REDIS_DB", "zero")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("sla hours", func(t *testing.T) {
		t.Setenv("TICKETS_DEFAULT_SLA_HOURS", "-1")
		_, err := Load()
		assert.Error(t, err)
	})
}
