package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("KV_BACKEND", "")
	t.Setenv("EMAIL_CODE_RATE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.KVBackend)
	assert.Equal(t, 5, cfg.EmailCodeRate)
	assert.False(t, cfg.Production())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KV_BACKEND", "redis")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SEED_DEMO_USERS", "true")
	t.Setenv("EMAIL_CODE_RATE", "12")

	cfg := Load()
	assert.Equal(t, "redis", cfg.KVBackend)
	assert.True(t, cfg.MinioUseSSL)
	assert.True(t, cfg.SeedDemoUsers)
	assert.Equal(t, 12, cfg.EmailCodeRate)
}

func TestValidate(t *testing.T) {
	dev := &Config{AppEnv: "development", JWTSecret: DefaultJWTSecret, KVBackend: "memory", SeedDemoUsers: true}
	require.NoError(t, dev.Validate())

	prod := &Config{AppEnv: "production", JWTSecret: "s3cret", KVBackend: "postgres"}
	require.NoError(t, prod.Validate())

	bad := *prod
	bad.JWTSecret = DefaultJWTSecret
	assert.Error(t, bad.Validate())

	bad = *prod
	bad.KVBackend = "memory"
	assert.Error(t, bad.Validate())

	bad = *prod
	bad.SeedDemoUsers = true
	assert.Error(t, bad.Validate())
}
