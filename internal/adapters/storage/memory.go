package storage

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/justinzzc/vision-box/internal/domain"
)

// MemoryStore holds payloads in process memory. Tests and single-node dev
// setups use it; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Store(_ context.Context, name, _ string, _ int64, payload io.Reader) (string, error) {
	data, err := io.ReadAll(payload)
	if err != nil {
		return "", err
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	s.mu.Lock()
	s.objects[key] = data
	s.mu.Unlock()
	return key, nil
}

func (s *MemoryStore) Resolve(_ context.Context, fileReference string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[fileReference]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
