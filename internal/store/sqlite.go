package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteKV is a single-file durable backend, handy when no server is around.
type SQLiteKV struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteKV opens (or creates) the database at path and migrates it.
func OpenSQLiteKV(ctx context.Context, path string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	s := &SQLiteKV{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteKV) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT    PRIMARY KEY,
			value      BLOB    NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, s.now().UnixMilli(),
	).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %q: %w", key, err)
	}
	return val, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt(s.now(), ttl),
	)
	if err != nil {
		return fmt.Errorf("sqlite set %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		 WHERE kv.expires_at <> 0 AND kv.expires_at <= ?`,
		key, value, expiresAt(now, ttl), now.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite setnx %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteKV) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE kv SET value = ?
		 WHERE key = ? AND value = ? AND (expires_at = 0 OR expires_at > ?)`,
		next, key, prev, s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite cas %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, key); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *SQLiteKV) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv
		 WHERE substr(key, 1, length(?)) = ? AND (expires_at = 0 OR expires_at > ?)
		 ORDER BY key`,
		prefix, prefix, s.now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite list %q: %w", prefix, err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}
