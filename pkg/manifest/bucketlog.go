package manifest

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
)

// ErrCASFailed is returned by Append when previous does not match the
// bucket's current head — the compare-and-swap spec.md §5 requires to
// enforce bucket-log linearity.
var ErrCASFailed = errors.New("manifest: bucket log append: previous does not match current head")

// LogEntry is one record in a bucket's linear manifest history.
type LogEntry struct {
	Link   codec.Link
	Height uint64
}

// BucketLog is the append-only, per-bucket sequence of manifest links
// spec.md §3.6 names as the only mutable per-bucket metadata outside the
// blob store. Implementations must reject an Append whose previous does
// not match the current head.
type BucketLog interface {
	// Head returns the current head link for bucketID, or ok == false
	// if the bucket has no history yet.
	Head(bucketID uuid.UUID) (link codec.Link, ok bool, err error)

	// Append adds link at height to bucketID's history. previous must
	// equal the current head's link (zero Link at genesis); a mismatch
	// returns ErrCASFailed without mutating anything.
	Append(bucketID uuid.UUID, link codec.Link, height uint64, previous codec.Link) error

	// List returns every entry for bucketID, ordered by height.
	List(bucketID uuid.UUID) ([]LogEntry, error)
}

// MemBucketLog is an in-memory BucketLog, for tests and Mirror peers
// that do not need durability.
type MemBucketLog struct {
	mu   sync.Mutex
	logs map[uuid.UUID][]LogEntry
}

// NewMemBucketLog returns an empty in-memory bucket log.
func NewMemBucketLog() *MemBucketLog {
	return &MemBucketLog{logs: map[uuid.UUID][]LogEntry{}}
}

func (l *MemBucketLog) Head(bucketID uuid.UUID) (codec.Link, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.logs[bucketID]
	if len(entries) == 0 {
		return codec.Link{}, false, nil
	}
	return entries[len(entries)-1].Link, true, nil
}

func (l *MemBucketLog) Append(bucketID uuid.UUID, link codec.Link, height uint64, previous codec.Link) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.logs[bucketID]
	if len(entries) == 0 {
		if previous != (codec.Link{}) {
			return ErrCASFailed
		}
	} else if entries[len(entries)-1].Link != previous {
		return ErrCASFailed
	}

	l.logs[bucketID] = append(entries, LogEntry{Link: link, Height: height})
	return nil
}

func (l *MemBucketLog) List(bucketID uuid.UUID) ([]LogEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.logs[bucketID]))
	copy(out, l.logs[bucketID])
	return out, nil
}
