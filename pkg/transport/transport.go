// Package transport implements the typed peer RPC contract spec.md
// §4.8 and §6.3 name: Head/FetchManifest/FetchBlob/Announce over an
// authenticated channel. The channel's own dialing, hole-punching, and
// relay are explicitly out of scope (spec.md §1's non-goals) — transport
// here means the typed request/response surface a dialed connection is
// used for, grounded on the teacher's grpc client/server split
// (pkg/client, cmd/warren's server wiring) generalized from Warren's
// generated proto service to a hand-written one, since no .proto
// definitions for this protocol exist to generate from.
package transport

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// ErrUnknownBucket is returned by FetchManifest when the responder does
// not hold the requested manifest link. Head reports a bucket it has
// never seen as HeadReply.Present == false, not as this error.
var ErrUnknownBucket = errors.New("transport: unknown bucket")

// ErrUnknownBlob is returned by FetchBlob when the responder does not
// have the requested hash.
var ErrUnknownBlob = errors.New("transport: unknown blob")

// HeadReply is Head's response: the bucket's current manifest link, or
// Present == false if the responder has never seen this bucket.
type HeadReply struct {
	Link    codec.Link
	Present bool
}

// Transport is the typed RPC surface a sync engine drives against one
// remote peer (spec.md §4.8's table). The core assumes the channel
// itself authenticates the remote's public key (spec.md §6.3) — that
// identity is threaded through out of band by whatever dialed the
// connection, not negotiated by these calls.
type Transport interface {
	// Head returns the remote's current head link for bucketID.
	Head(ctx context.Context, bucketID uuid.UUID) (HeadReply, error)

	// FetchManifest retrieves the raw encoded manifest bytes at link.
	// Bytes, not a decoded Manifest: the caller verifies the signature
	// and hash before trusting the contents.
	FetchManifest(ctx context.Context, link codec.Link) ([]byte, error)

	// FetchBlob streams the bytes behind hash. The caller must verify
	// BLAKE3(bytes) == hash before inserting them into its own store
	// (spec.md §4.8 step 4) and must Close the reader.
	FetchBlob(ctx context.Context, hash jaxcrypto.Hash) (io.ReadCloser, error)

	// Announce tells the remote that bucketID's head is now newHead, so
	// it can schedule a pull. It does not push any bytes itself.
	Announce(ctx context.Context, bucketID uuid.UUID, newHead codec.Link) error
}

// Handler is the responder side of Transport: what a Peer implements to
// serve these four RPCs to a remote caller (see pkg/peer.Peer).
type Handler interface {
	HandleHead(ctx context.Context, bucketID uuid.UUID) (HeadReply, error)
	HandleFetchManifest(ctx context.Context, link codec.Link) ([]byte, error)
	HandleFetchBlob(ctx context.Context, hash jaxcrypto.Hash) (io.ReadCloser, error)
	HandleAnnounce(ctx context.Context, fromPub jaxcrypto.PublicKey, bucketID uuid.UUID, newHead codec.Link) error
}
