package manifest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

var bucketBucketLog = []byte("bucket_log")

// BoltBucketLog is a bbolt-backed BucketLog, grounded on the same
// single-file-database pattern as blob.BoltStore. Keys are
// bucket_id(16) || height(8, big-endian) so a bucket's entries sort in
// height order under a single prefix scan.
type BoltBucketLog struct {
	db *bolt.DB
}

// NewBoltBucketLog opens (creating if absent) a bbolt database under
// dataDir for bucket-log storage.
func NewBoltBucketLog(dataDir string) (*BoltBucketLog, error) {
	dbPath := filepath.Join(dataDir, "bucketlog.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("manifest: open bolt bucket log: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBucketLog)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: create bucket log bucket: %w", err)
	}
	return &BoltBucketLog{db: db}, nil
}

// Close closes the underlying database.
func (l *BoltBucketLog) Close() error {
	return l.db.Close()
}

func logKey(bucketID uuid.UUID, height uint64) []byte {
	key := make([]byte, 16+8)
	copy(key, bucketID[:])
	binary.BigEndian.PutUint64(key[16:], height)
	return key
}

func encodeLogValue(link codec.Link) []byte {
	v := make([]byte, jaxcrypto.HashSize+1)
	copy(v, link.Hash[:])
	v[jaxcrypto.HashSize] = byte(link.Tag)
	return v
}

func decodeLogValue(v []byte) (codec.Link, error) {
	if len(v) != jaxcrypto.HashSize+1 {
		return codec.Link{}, fmt.Errorf("manifest: malformed bucket log value")
	}
	var h jaxcrypto.Hash
	copy(h[:], v[:jaxcrypto.HashSize])
	return codec.Link{Hash: h, Tag: codec.Tag(v[jaxcrypto.HashSize])}, nil
}

func (l *BoltBucketLog) Head(bucketID uuid.UUID) (codec.Link, bool, error) {
	entries, err := l.List(bucketID)
	if err != nil {
		return codec.Link{}, false, err
	}
	if len(entries) == 0 {
		return codec.Link{}, false, nil
	}
	return entries[len(entries)-1].Link, true, nil
}

func (l *BoltBucketLog) Append(bucketID uuid.UUID, link codec.Link, height uint64, previous codec.Link) error {
	return l.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBucketLog)
		c := b.Cursor()
		prefix := bucketID[:]

		var lastKey, lastVal []byte
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			lastKey, lastVal = k, v
		}

		if lastKey == nil {
			if previous != (codec.Link{}) {
				return ErrCASFailed
			}
		} else {
			head, err := decodeLogValue(lastVal)
			if err != nil {
				return err
			}
			if head != previous {
				return ErrCASFailed
			}
		}

		return b.Put(logKey(bucketID, height), encodeLogValue(link))
	})
}

func (l *BoltBucketLog) List(bucketID uuid.UUID) ([]LogEntry, error) {
	var out []LogEntry
	err := l.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBucketLog)
		c := b.Cursor()
		prefix := bucketID[:]
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			link, err := decodeLogValue(v)
			if err != nil {
				return err
			}
			out = append(out, LogEntry{Link: link, Height: binary.BigEndian.Uint64(k[16:])})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: list bucket log: %w", err)
	}
	return out, nil
}
