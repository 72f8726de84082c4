package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKV keeps the key space in a single kv table.
type PostgresKV struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresKV(pool *pgxpool.Pool) *PostgresKV {
	return &PostgresKV{pool: pool, now: time.Now}
}

// Migrate creates the kv table if it doesn't exist.
func (s *PostgresKV) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT   PRIMARY KEY,
			value      BYTEA  NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0
		)
	`)
	return err
}

func (s *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv WHERE key = $1 AND (expires_at = 0 OR expires_at > $2)`,
		key, s.now().UnixMilli(),
	).Scan(&val)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return val, nil
}

func (s *PostgresKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt(s.now(), ttl),
	)
	if err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

// SetNX inserts the row, or takes over a row whose ttl has passed.
func (s *PostgresKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := s.now()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at
		 WHERE kv.expires_at <> 0 AND kv.expires_at <= $4`,
		key, value, expiresAt(now, ttl), now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("postgres setnx %q: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresKV) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE kv SET value = $1
		 WHERE key = $2 AND value = $3 AND (expires_at = 0 OR expires_at > $4)`,
		next, key, prev, s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("postgres cas %q: %w", key, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, key); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresKV) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key)
	return err
}

func (s *PostgresKV) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv
		 WHERE key LIKE $1 ESCAPE '\' AND (expires_at = 0 OR expires_at > $2)
		 ORDER BY key`,
		likePrefix(prefix), s.now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres list %q: %w", prefix, err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (s *PostgresKV) Close() error {
	s.pool.Close()
	return nil
}
