package blob

import (
	"errors"
	"io"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// MaxBlobSize is the default upper bound on a single blob, matching
// spec.md §6.1's "1 GiB default".
const MaxBlobSize = 1 << 30

// ErrTooLarge is returned when a Put/PutStream exceeds the store's
// configured max blob size.
var ErrTooLarge = errors.New("blob: exceeds max blob size")

// ErrNotFound names the absent-hash condition. Neither MemStore nor
// BoltStore returns it: their Get/GetStream report a missing hash as
// (nil, false, nil). It is provided for callers that prefer error-based
// control flow (e.g. io.Reader adapters).
var ErrNotFound = errors.New("blob: not found")

// Store is the content-addressed byte store contract (spec.md §6.1). All
// methods must be safe for concurrent use.
type Store interface {
	// Put stores data and returns its BLAKE3 hash. Idempotent: storing the
	// same bytes twice returns the same hash and performs no extra work.
	Put(data []byte) (jaxcrypto.Hash, error)

	// PutStream is the streaming form of Put, for large payloads. The
	// content-addressing contract is identical.
	PutStream(r io.Reader) (jaxcrypto.Hash, error)

	// Get returns the bytes for hash, or ok == false if absent.
	Get(hash jaxcrypto.Hash) (data []byte, ok bool, err error)

	// GetStream is the streaming form of Get. The caller must Close the
	// returned reader when ok is true.
	GetStream(hash jaxcrypto.Hash) (r io.ReadCloser, ok bool, err error)

	// Has reports whether hash is present without reading its bytes.
	Has(hash jaxcrypto.Hash) (bool, error)

	// Delete removes a blob. The engine only calls this during garbage
	// collection of unpinned data (spec.md §4.2) — never as part of a
	// save or merge.
	Delete(hash jaxcrypto.Hash) error
}
