package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/ayush/bugdex-forum/backend/internal/config"
	"github.com/ayush/bugdex-forum/backend/internal/mail"
	"github.com/ayush/bugdex-forum/backend/internal/repository"
	"github.com/ayush/bugdex-forum/backend/internal/server"
	"github.com/ayush/bugdex-forum/backend/internal/store"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(newLogger(cfg.LogFormat, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()
	if err != nil {
		slog.Error("bugdex backend stopped", "err", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled. It owns every resource it opens, so
// they are closed before it returns. Setup is not bound to ctx.
func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setup := context.Background()

	// ── Key-value store ──────────────────────────────────────
	kv, err := store.OpenKV(setup, cfg)
	if err != nil {
		return fmt.Errorf("kv connect (%s): %w", cfg.KVBackend, err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			slog.Warn("kv close", "err", err)
		}
	}()
	slog.Info("kv store ready", "backend", cfg.KVBackend)

	// ── Attachments ──────────────────────────────────────────
	files, err := store.OpenFiles(setup, cfg)
	if err != nil {
		return fmt.Errorf("file store connect: %w", err)
	}
	if cfg.MinioEndpoint == "" {
		slog.Warn("MINIO_ENDPOINT not set, attachments are kept in memory")
	}

	// ── Demo accounts ────────────────────────────────────────
	if cfg.SeedDemoUsers {
		if err := repository.SeedDemoUsers(setup, repository.New(kv).Users); err != nil {
			return fmt.Errorf("seed demo users: %w", err)
		}
	}

	// ── Email ────────────────────────────────────────────────
	mailer := mail.FromConfig(cfg.SendGridAPIKey, cfg.SendGridFromEmail, cfg.ResendAPIKey, cfg.ResendFromEmail)

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(cfg, kv, files, mailer),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("BugDex backend listening", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: lvl, TimeFormat: time.Kitchen}))
}
