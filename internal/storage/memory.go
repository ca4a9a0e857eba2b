package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"custodia/pkg/platform/sentinel"
)

// MemoryBlobStore keeps blobs in process memory. It is the single-instance
// stand-in for the real object storage collaborator and the fixture for tests;
// it intentionally favors clarity over performance.
type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data        []byte
	contentType string
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: make(map[string]blob)}
}

func (s *MemoryBlobStore) Put(_ context.Context, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := uuid.New().String()
	s.blobs[key] = blob{data: append([]byte(nil), data...), contentType: contentType}
	return key, nil
}

func (s *MemoryBlobStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	// Absent keys count as deleted so retries stay idempotent.
	return true, nil
}

func (s *MemoryBlobStore) Resolve(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.blobs[key]; !ok {
		return "", sentinel.ErrNotFound
	}
	return "memory://" + key, nil
}

// Len reports the number of stored blobs; used by tests to verify cleanup.
func (s *MemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
