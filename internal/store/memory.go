package store

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memEntry struct {
	value     []byte
	expiresAt int64
}

// MemoryKV is an in-process KV used for tests and local development.
// It is not durable and not shared between processes.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]memEntry), now: time.Now}
}

// WithClock replaces the clock used for expiry checks.
func (m *MemoryKV) WithClock(now func() time.Time) *MemoryKV {
	m.now = now
	return m
}

func (m *MemoryKV) live(e memEntry) bool {
	return e.expiresAt == 0 || e.expiresAt > m.now().UnixMilli()
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || !m.live(e) {
		return nil, ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memEntry{value: bytes.Clone(value), expiresAt: expiresAt(m.now(), ttl)}
	return nil
}

func (m *MemoryKV) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.data[key]; ok && m.live(e) {
		return false, nil
	}
	m.data[key] = memEntry{value: bytes.Clone(value), expiresAt: expiresAt(m.now(), ttl)}
	return true, nil
}

func (m *MemoryKV) CompareAndSwap(_ context.Context, key string, prev, next []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok || !m.live(e) {
		return false, ErrNotFound
	}
	if !bytes.Equal(e.value, prev) {
		return false, nil
	}
	e.value = bytes.Clone(next)
	m.data[key] = e
	return true, nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := []string{}
	for k, e := range m.data {
		if strings.HasPrefix(k, prefix) && m.live(e) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKV) Close() error { return nil }
