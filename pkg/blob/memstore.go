package blob

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// MemStore is an in-memory Store, primarily for tests and for Mirror peers
// that hold small buckets entirely in RAM.
type MemStore struct {
	mu      sync.RWMutex
	blobs   map[jaxcrypto.Hash][]byte
	maxSize int64
}

// NewMemStore creates an empty in-memory blob store with the default
// MaxBlobSize limit.
func NewMemStore() *MemStore {
	return &MemStore{
		blobs:   make(map[jaxcrypto.Hash][]byte),
		maxSize: MaxBlobSize,
	}
}

// WithMaxSize overrides the default max blob size.
func (s *MemStore) WithMaxSize(n int64) *MemStore {
	s.maxSize = n
	return s
}

func (s *MemStore) Put(data []byte) (jaxcrypto.Hash, error) {
	if int64(len(data)) > s.maxSize {
		return jaxcrypto.Hash{}, fmt.Errorf("blob: put %d bytes: %w", len(data), ErrTooLarge)
	}
	h := jaxcrypto.SumHash(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[h]; !exists {
		cp := make([]byte, len(data))
		copy(cp, data)
		s.blobs[h] = cp
	}
	return h, nil
}

func (s *MemStore) PutStream(r io.Reader) (jaxcrypto.Hash, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return jaxcrypto.Hash{}, fmt.Errorf("blob: put stream: %w", err)
	}
	return s.Put(data)
}

func (s *MemStore) Get(hash jaxcrypto.Hash) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[hash]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true, nil
}

func (s *MemStore) GetStream(hash jaxcrypto.Hash) (io.ReadCloser, bool, error) {
	data, ok, err := s.Get(hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	return io.NopCloser(bytes.NewReader(data)), true, nil
}

func (s *MemStore) Has(hash jaxcrypto.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[hash]
	return ok, nil
}

func (s *MemStore) Delete(hash jaxcrypto.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, hash)
	return nil
}

// Len reports the number of distinct blobs currently stored, useful in
// tests asserting on sync completeness.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

// List enumerates every hash currently stored, for ReferenceCount.
func (s *MemStore) List() ([]jaxcrypto.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hashes := make([]jaxcrypto.Hash, 0, len(s.blobs))
	for h := range s.blobs {
		hashes = append(hashes, h)
	}
	return hashes, nil
}
