package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("REDIS_URL", "redis://platform:6379/0")
	t.Setenv("AMQP_URL", "amqp://platform")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform", cfg.DatabaseURL)
	assert.Equal(t, "redis://platform:6379/0", cfg.Session.RedisURL)
	assert.True(t, cfg.Session.UseRedis())
	assert.Equal(t, "amqp://platform", cfg.Broker.URL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestApplyPlatformDefaults_ExplicitWins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform")
	t.Setenv("REDIS_URL", "redis://platform:6379/0")
	t.Setenv("PORT", "9000")

	cfg := Config{
		Addr:        "127.0.0.1:7000",
		DatabaseURL: "postgres://explicit",
		Session:     SessionConfig{RedisAddr: "localhost:6379"},
	}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://explicit", cfg.DatabaseURL)
	assert.Empty(t, cfg.Session.RedisURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Session: SessionConfig{TTL: time.Hour}}
	require.Error(t, cfg.validate())

	cfg.DatabaseURL = "postgres://x"
	require.NoError(t, cfg.validate())
	assert.False(t, cfg.Session.UseRedis())

	cfg.Session.TTL = 0
	require.Error(t, cfg.validate())
}
