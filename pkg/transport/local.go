package transport

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// Local adapts a Handler directly into a Transport, skipping gRPC and
// the network entirely. It is how two Peers in the same process talk
// to each other in tests: the sync engine's caller supplies the
// originating identity once here rather than relying on a TLS layer
// to carry it, since there is no real connection authenticating one.
type Local struct {
	handler Handler
	fromPub jaxcrypto.PublicKey
}

// NewLocal returns a Transport that calls h in-process, attributing
// Announce calls to fromPub as if that identity had dialed in.
func NewLocal(h Handler, fromPub jaxcrypto.PublicKey) *Local {
	return &Local{handler: h, fromPub: fromPub}
}

var _ Transport = (*Local)(nil)

func (l *Local) Head(ctx context.Context, bucketID uuid.UUID) (HeadReply, error) {
	return l.handler.HandleHead(ctx, bucketID)
}

func (l *Local) FetchManifest(ctx context.Context, link codec.Link) ([]byte, error) {
	return l.handler.HandleFetchManifest(ctx, link)
}

func (l *Local) FetchBlob(ctx context.Context, hash jaxcrypto.Hash) (io.ReadCloser, error) {
	return l.handler.HandleFetchBlob(ctx, hash)
}

func (l *Local) Announce(ctx context.Context, bucketID uuid.UUID, newHead codec.Link) error {
	return l.handler.HandleAnnounce(ctx, l.fromPub, bucketID, newHead)
}
