package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/bugdex-forum/backend/internal/config"
)

// OpenKV connects the backend named by cfg.KVBackend.
func OpenKV(ctx context.Context, cfg *config.Config) (KV, error) {
	switch cfg.KVBackend {
	case "memory":
		return NewMemoryKV(), nil

	case "redis":
		rdb, err := NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return NewRedisKV(rdb), nil

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		kv := NewPostgresKV(pool)
		if err := kv.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		return kv, nil

	case "mongo":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		return NewMongoKV(client.Database(cfg.MongoDB)), nil

	case "sqlite":
		return OpenSQLiteKV(ctx, cfg.SQLitePath)

	default:
		return nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}
}

// OpenFiles returns MinIO when an endpoint is configured, otherwise memory.
func OpenFiles(ctx context.Context, cfg *config.Config) (FileStore, error) {
	if cfg.MinioEndpoint == "" {
		return NewMemoryFileStore(), nil
	}
	return NewMinioStore(ctx, MinioOptions{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
}
