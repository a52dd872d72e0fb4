package node

import "errors"

var (
	// ErrNotADirectory is returned when an operation requiring a
	// directory node is applied to a file leaf.
	ErrNotADirectory = errors.New("node: not a directory")

	// ErrNotAFile is returned when an operation requiring a file leaf
	// is applied to a directory node.
	ErrNotAFile = errors.New("node: not a file")

	// ErrNotFound is returned by Walk when a path component does not
	// exist.
	ErrNotFound = errors.New("node: not found")

	// ErrBlobMissing is returned when Load cannot find the encrypted
	// payload for a link in the blob store.
	ErrBlobMissing = errors.New("node: blob missing")

	// ErrIntegrityMismatch is returned by Load when a node's sealed
	// payload fails to open for any reason; the underlying jaxcrypto
	// error is included as text, not wrapped.
	ErrIntegrityMismatch = errors.New("node: integrity mismatch")
)
