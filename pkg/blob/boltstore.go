package blob

import (
	"fmt"
	"io"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

var bucketBlobs = []byte("blobs")

// BoltStore is a bbolt-backed Store, for single-process deployments that
// want the blob store durable across restarts without an external
// dependency — the same tradeoff the teacher codebase makes for its
// cluster state store.
type BoltStore struct {
	db      *bolt.DB
	maxSize int64
}

// NewBoltStore opens (creating if absent) a bbolt database under dataDir
// for content-addressed blob storage.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "blobs.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("blob: open bolt store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("blob: create bucket: %w", err)
	}

	return &BoltStore{db: db, maxSize: MaxBlobSize}, nil
}

// WithMaxSize overrides the default max blob size.
func (s *BoltStore) WithMaxSize(n int64) *BoltStore {
	s.maxSize = n
	return s
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Put(data []byte) (jaxcrypto.Hash, error) {
	if int64(len(data)) > s.maxSize {
		return jaxcrypto.Hash{}, fmt.Errorf("blob: put %d bytes: %w", len(data), ErrTooLarge)
	}
	h := jaxcrypto.SumHash(data)

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		if b.Get(h[:]) != nil {
			return nil // idempotent: already stored
		}
		return b.Put(h[:], data)
	})
	if err != nil {
		return jaxcrypto.Hash{}, fmt.Errorf("blob: put: %w", err)
	}
	return h, nil
}

func (s *BoltStore) PutStream(r io.Reader) (jaxcrypto.Hash, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return jaxcrypto.Hash{}, fmt.Errorf("blob: put stream: %w", err)
	}
	return s.Put(data)
}

func (s *BoltStore) Get(hash jaxcrypto.Hash) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get(hash[:])
		if v == nil {
			return nil
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("blob: get: %w", err)
	}
	return data, data != nil, nil
}

func (s *BoltStore) GetStream(hash jaxcrypto.Hash) (io.ReadCloser, bool, error) {
	data, ok, err := s.Get(hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	return io.NopCloser(&sliceReader{data: data}), true, nil
}

func (s *BoltStore) Has(hash jaxcrypto.Hash) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(bucketBlobs).Get(hash[:]) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("blob: has: %w", err)
	}
	return ok, nil
}

// List enumerates every hash currently stored, for ReferenceCount.
func (s *BoltStore) List() ([]jaxcrypto.Hash, error) {
	var hashes []jaxcrypto.Hash
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).ForEach(func(k, _ []byte) error {
			var h jaxcrypto.Hash
			copy(h[:], k)
			hashes = append(hashes, h)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("blob: list: %w", err)
	}
	return hashes, nil
}

func (s *BoltStore) Delete(hash jaxcrypto.Hash) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete(hash[:])
	})
	if err != nil {
		return fmt.Errorf("blob: delete: %w", err)
	}
	return nil
}

type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
