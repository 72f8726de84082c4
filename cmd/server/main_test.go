package main

import (
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/bugdex-forum/backend/internal/config"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:          "0",
		AppEnv:        "development",
		JWTSecret:     "test-secret",
		KVBackend:     "sqlite",
		SQLitePath:    filepath.Join(t.TempDir(), "bugdex.db"),
		EmailCodeRate: 5,
	}
}

func TestRunReturnsSetupErrors(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.AppEnv = "production"
	cfg.JWTSecret = config.DefaultJWTSecret
	err := run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	cfg = sqliteConfig(t)
	cfg.KVBackend = "etcd"
	err = run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kv connect")
}

func TestRunReportsListenFailure(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()

	cfg := sqliteConfig(t)
	cfg.Port = strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)
	err = run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server error")
}

func TestRunShutsDownAndKeepsData(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.SeedDemoUsers = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, run(ctx, cfg))

	kv, err := store.OpenSQLiteKV(context.Background(), cfg.SQLitePath)
	require.NoError(t, err)
	defer kv.Close()
	admin, err := repository.New(kv).Users.Get(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin@bugdex.com", admin.Email)
}
