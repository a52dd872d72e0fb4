package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// callOpts forces the jaxbucket-cbor codec for every invocation made
// through a Client, regardless of whatever default the ClientConn was
// dialed with.
var callOpts = []grpc.CallOption{grpc.CallContentSubtype(cborCodecName)}

// Client is the grpc-backed Transport a sync engine dials against one
// remote peer's address. The conn's credentials (mTLS or otherwise)
// are the caller's concern — Client only knows the typed RPC surface.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient wraps an already-dialed connection. The caller owns conn's
// lifecycle (dialing, TLS, closing).
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

var _ Transport = (*Client)(nil)

func (c *Client) Head(ctx context.Context, bucketID uuid.UUID) (HeadReply, error) {
	out := new(headResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/Head", &headRequest{BucketID: bucketID}, out, callOpts...); err != nil {
		return HeadReply{}, err
	}
	return HeadReply{Link: out.Link, Present: out.Present}, nil
}

func (c *Client) FetchManifest(ctx context.Context, link codec.Link) ([]byte, error) {
	out := new(fetchManifestResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/FetchManifest", &fetchManifestRequest{Link: link}, out, callOpts...); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Announce(ctx context.Context, bucketID uuid.UUID, newHead codec.Link) error {
	out := new(announceResponse)
	return c.conn.Invoke(ctx, "/"+serviceName+"/Announce", &announceRequest{BucketID: bucketID, NewHead: newHead}, out, callOpts...)
}

func (c *Client) FetchBlob(ctx context.Context, hash jaxcrypto.Hash) (io.ReadCloser, error) {
	desc := &grpc.StreamDesc{StreamName: "FetchBlob", ServerStreams: true}
	stream, err := c.conn.NewStream(ctx, desc, "/"+serviceName+"/FetchBlob", callOpts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&fetchBlobRequest{Hash: hash}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &blobStreamReader{stream: stream}, nil
}

// blobStreamReader adapts a grpc.ClientStream of fetchBlobChunk frames
// to io.ReadCloser so callers can hash the bytes as they arrive instead
// of waiting for the whole blob to buffer in memory.
type blobStreamReader struct {
	stream grpc.ClientStream
	buf    []byte
}

func (r *blobStreamReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		chunk := new(fetchBlobChunk)
		if err := r.stream.RecvMsg(chunk); err != nil {
			if err == io.EOF {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("transport: read blob stream: %w", err)
		}
		r.buf = chunk.Data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *blobStreamReader) Close() error {
	return r.stream.CloseSend()
}
