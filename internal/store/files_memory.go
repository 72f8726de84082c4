package store

import (
	"bytes"
	"context"
	"sync"
)

type memFile struct {
	data        []byte
	contentType string
}

// MemoryFileStore holds attachments in process memory.
type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string]memFile
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{files: make(map[string]memFile)}
}

func (s *MemoryFileStore) Upload(_ context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = memFile{data: bytes.Clone(data), contentType: contentType}
	return nil
}

func (s *MemoryFileStore) Download(_ context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[key]
	if !ok {
		return nil, "", ErrNotFound
	}
	return bytes.Clone(f.data), f.contentType, nil
}

func (s *MemoryFileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

// Len reports how many objects are stored.
func (s *MemoryFileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
