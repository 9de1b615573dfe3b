package evidence

import (
	"context"
	"sync"

	"github.com/governedloop/core/pkg/errs"
)

// MemoryStore is an in-process ports.EvidenceStore used by unit tests.
// It honours content-addressing and idempotent writes: storing the
// same bundleHash twice is a no-op.
type MemoryStore struct {
	mu    sync.Mutex
	bund  map[string]storedBundle
}

type storedBundle struct {
	manifest []byte
	blobs    map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bund: make(map[string]storedBundle)}
}

func (s *MemoryStore) Store(ctx context.Context, manifestJSON []byte, blobs map[string][]byte) (string, error) {
	hash := BundleHash(manifestJSON, blobs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bund[hash]; exists {
		return hash, nil
	}
	blobsCopy := make(map[string][]byte, len(blobs))
	for k, v := range blobs {
		blobsCopy[k] = append([]byte(nil), v...)
	}
	s.bund[hash] = storedBundle{manifest: append([]byte(nil), manifestJSON...), blobs: blobsCopy}
	return hash, nil
}

func (s *MemoryStore) Retrieve(ctx context.Context, bundleHash string) ([]byte, map[string][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bund[bundleHash]
	if !ok {
		return nil, nil, errs.ErrNotFound
	}
	return b.manifest, b.blobs, nil
}

func (s *MemoryStore) Exists(ctx context.Context, bundleHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.bund[bundleHash]
	return ok, nil
}
