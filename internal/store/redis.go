package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates and pings a Redis client with optional password auth.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// RedisKV stores every key as a plain Redis string.
type RedisKV struct {
	rdb *redis.Client
}

func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (s *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return val, err
}

func (s *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *RedisKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

// CompareAndSwap uses WATCH/MULTI; a concurrent write to key aborts the
// transaction and is reported as a failed swap.
func (s *RedisKV) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	swapped := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, prev) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, redis.KeepTTL)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return swapped, nil
}

func (s *RedisKV) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// List walks the keyspace with SCAN rather than KEYS.
func (s *RedisKV) List(ctx context.Context, prefix string) ([]string, error) {
	match := globEscape(prefix) + "*"
	keys := []string{}
	var cursor uint64
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, match, 200).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan %q: %w", prefix, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	// SCAN may return a key more than once.
	sort.Strings(keys)
	return compact(keys), nil
}

func (s *RedisKV) Close() error {
	return s.rdb.Close()
}

func globEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}

func compact(sorted []string) []string {
	out := sorted[:0]
	for i, k := range sorted {
		if i > 0 && k == sorted[i-1] {
			continue
		}
		out = append(out, k)
	}
	return out
}
