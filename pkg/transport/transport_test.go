package transport_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/transport"
)

// fakeHandler is an in-memory transport.Handler standing in for a real
// Peer, so this package's wiring can be tested without pulling in
// pkg/peer.
type fakeHandler struct {
	mu        sync.Mutex
	heads     map[uuid.UUID]codec.Link
	manifests map[codec.Link][]byte
	blobs     map[jaxcrypto.Hash][]byte
	announced []codec.Link
}

func newFakeHandler() *fakeHandler {
	return &fakeHandler{
		heads:     make(map[uuid.UUID]codec.Link),
		manifests: make(map[codec.Link][]byte),
		blobs:     make(map[jaxcrypto.Hash][]byte),
	}
}

func (f *fakeHandler) HandleHead(ctx context.Context, bucketID uuid.UUID) (transport.HeadReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.heads[bucketID]
	return transport.HeadReply{Link: link, Present: ok}, nil
}

func (f *fakeHandler) HandleFetchManifest(ctx context.Context, link codec.Link) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.manifests[link]
	if !ok {
		return nil, transport.ErrUnknownBucket
	}
	return data, nil
}

func (f *fakeHandler) HandleFetchBlob(ctx context.Context, hash jaxcrypto.Hash) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[hash]
	if !ok {
		return nil, transport.ErrUnknownBlob
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeHandler) HandleAnnounce(ctx context.Context, fromPub jaxcrypto.PublicKey, bucketID uuid.UUID, newHead codec.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.announced = append(f.announced, newHead)
	return nil
}

func TestLocalRoundTripsAllFourRPCs(t *testing.T) {
	h := newFakeHandler()
	bucketID := uuid.New()
	link := codec.Link{Hash: jaxcrypto.SumHash([]byte("manifest")), Tag: codec.TagDagCBOR}
	h.heads[bucketID] = link
	h.manifests[link] = []byte("encoded manifest bytes")
	blobHash := jaxcrypto.SumHash([]byte("blob body"))
	h.blobs[blobHash] = []byte("blob body")

	peerPub := jaxcrypto.PublicKey{}
	tr := transport.NewLocal(h, peerPub)
	ctx := context.Background()

	head, err := tr.Head(ctx, bucketID)
	require.NoError(t, err)
	require.True(t, head.Present)
	require.Equal(t, link, head.Link)

	data, err := tr.FetchManifest(ctx, link)
	require.NoError(t, err)
	require.Equal(t, "encoded manifest bytes", string(data))

	rc, err := tr.FetchBlob(ctx, blobHash)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "blob body", string(body))

	require.NoError(t, tr.Announce(ctx, bucketID, link))
	require.Len(t, h.announced, 1)
	require.Equal(t, link, h.announced[0])
}

func TestLocalFetchManifestUnknownBucketReturnsErrUnknownBucket(t *testing.T) {
	h := newFakeHandler()
	tr := transport.NewLocal(h, jaxcrypto.PublicKey{})
	_, err := tr.FetchManifest(context.Background(), codec.Link{})
	require.True(t, errors.Is(err, transport.ErrUnknownBucket))
}

// dialBufconn spins up a real gRPC server over an in-memory listener
// and returns a Client talking to it, exercising the hand-authored
// ServiceDesc and the registered jaxbucket-cbor codec end to end
// instead of just the Local shortcut.
func dialBufconn(t *testing.T, h transport.Handler) *transport.Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	transport.RegisterServer(srv, h)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return transport.NewClient(conn)
}

func TestGRPCRoundTripsHeadFetchManifestAndAnnounce(t *testing.T) {
	h := newFakeHandler()
	bucketID := uuid.New()
	link := codec.Link{Hash: jaxcrypto.SumHash([]byte("manifest")), Tag: codec.TagDagCBOR}
	h.heads[bucketID] = link
	h.manifests[link] = []byte("encoded manifest bytes")

	client := dialBufconn(t, h)
	ctx := context.Background()

	head, err := client.Head(ctx, bucketID)
	require.NoError(t, err)
	require.True(t, head.Present)
	require.Equal(t, link, head.Link)

	data, err := client.FetchManifest(ctx, link)
	require.NoError(t, err)
	require.Equal(t, "encoded manifest bytes", string(data))

	require.NoError(t, client.Announce(ctx, bucketID, link))
	require.Len(t, h.announced, 1)
}

func TestGRPCStreamsFetchBlobInChunks(t *testing.T) {
	h := newFakeHandler()
	body := bytes.Repeat([]byte("x"), 3<<20) // exceeds blobChunkSize so it spans multiple frames
	hash := jaxcrypto.SumHash(body)
	h.blobs[hash] = body

	client := dialBufconn(t, h)
	rc, err := client.FetchBlob(context.Background(), hash)
	require.NoError(t, err)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, body, got)
}

func TestGRPCFetchBlobUnknownHashReturnsError(t *testing.T) {
	h := newFakeHandler()
	client := dialBufconn(t, h)
	rc, err := client.FetchBlob(context.Background(), jaxcrypto.SumHash([]byte("nope")))
	if err == nil {
		_, err = io.ReadAll(rc)
	}
	require.Error(t, err)
}
