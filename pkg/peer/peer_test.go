package peer_test

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
	"github.com/jaxbucket/jaxbucket/pkg/peer"
	"github.com/jaxbucket/jaxbucket/pkg/transport"
)

func mustSK(t *testing.T) jaxcrypto.SecretKey {
	t.Helper()
	sk, err := jaxcrypto.GenerateIdentity()
	require.NoError(t, err)
	return sk
}

func TestCreateBucketCachesTheOpenMount(t *testing.T) {
	p := peer.New(peer.Config{
		Identity:  mustSK(t),
		Blobs:     blob.NewMemStore(),
		BucketLog: manifest.NewMemBucketLog(),
	})
	bucketID := uuid.New()

	m, err := p.CreateBucket(bucketID, "photos")
	require.NoError(t, err)

	cached, ok := p.Mount(bucketID)
	require.True(t, ok)
	require.Same(t, m, cached)
}

func TestOpenBucketReturnsCachedMountWithoutReload(t *testing.T) {
	store := blob.NewMemStore()
	bucketLog := manifest.NewMemBucketLog()
	sk := mustSK(t)
	p := peer.New(peer.Config{Identity: sk, Blobs: store, BucketLog: bucketLog})
	bucketID := uuid.New()

	created, err := p.CreateBucket(bucketID, "photos")
	require.NoError(t, err)
	saved, err := created.Save(false)
	require.NoError(t, err)

	opened, err := p.OpenBucket(bucketID, saved.Link)
	require.NoError(t, err)
	require.Same(t, created, opened, "already-open bucket must not be reloaded")
}

// TestHandlerServesHeadManifestAndBlobAcrossTwoPeers exercises Peer's
// transport.Handler implementation the way a remote sync engine would
// drive it: one peer owns and saves a bucket, a second peer (sharing
// the same blob store and bucket log, as two real peers would via
// whatever replicates those independently) reads it back purely
// through the Handler surface plus a local Mount.Load using the
// fetched bytes, never touching the first Peer's Go values directly.
func TestHandlerServesHeadManifestAndBlobAcrossTwoPeers(t *testing.T) {
	store := blob.NewMemStore()
	bucketLog := manifest.NewMemBucketLog()
	ownerSK := mustSK(t)
	readerSK := mustSK(t)
	bucketID := uuid.New()

	owner := peer.New(peer.Config{Identity: ownerSK, Blobs: store, BucketLog: bucketLog})
	m, err := owner.CreateBucket(bucketID, "shared")
	require.NoError(t, err)
	require.NoError(t, m.Add("/hello.txt", []byte("hi")))
	shared, err := m.ShareWith(readerSK.Public(), manifest.RoleOwner)
	require.NoError(t, err)

	ctx := context.Background()
	head, err := owner.HandleHead(ctx, bucketID)
	require.NoError(t, err)
	require.True(t, head.Present)
	require.Equal(t, shared.Link, head.Link)

	raw, err := owner.HandleFetchManifest(ctx, head.Link)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	reader := peer.New(peer.Config{Identity: readerSK, Blobs: store, BucketLog: bucketLog})
	opened, err := reader.OpenBucket(bucketID, head.Link)
	require.NoError(t, err)

	data, err := opened.Cat("/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hi", string(data))
}

func TestHandleFetchManifestUnknownLinkReturnsErrUnknownBucket(t *testing.T) {
	p := peer.New(peer.Config{Identity: mustSK(t), Blobs: blob.NewMemStore(), BucketLog: manifest.NewMemBucketLog()})
	_, err := p.HandleFetchManifest(context.Background(), codec.Link{Hash: jaxcrypto.SumHash([]byte("nope")), Tag: codec.TagDagCBOR})
	require.ErrorIs(t, err, transport.ErrUnknownBucket)
}

// fakeTransport records Announce calls without doing anything else, so
// AnnounceAll's fan-out can be tested without a real network or a
// second in-process Peer.
type fakeTransport struct {
	announced []codec.Link
	failNext  bool
}

func (f *fakeTransport) Head(ctx context.Context, bucketID uuid.UUID) (transport.HeadReply, error) {
	return transport.HeadReply{}, nil
}
func (f *fakeTransport) FetchManifest(ctx context.Context, link codec.Link) ([]byte, error) {
	return nil, nil
}
func (f *fakeTransport) FetchBlob(ctx context.Context, hash jaxcrypto.Hash) (io.ReadCloser, error) {
	return nil, nil
}
func (f *fakeTransport) Announce(ctx context.Context, bucketID uuid.UUID, newHead codec.Link) error {
	if f.failNext {
		return context.DeadlineExceeded
	}
	f.announced = append(f.announced, newHead)
	return nil
}

var _ transport.Transport = (*fakeTransport)(nil)

func TestAnnounceAllFansOutAndCollectsFailuresWithoutStopping(t *testing.T) {
	p := peer.New(peer.Config{Identity: mustSK(t), Blobs: blob.NewMemStore(), BucketLog: manifest.NewMemBucketLog()})
	bucketID := uuid.New()

	ok1 := &fakeTransport{}
	failing := &fakeTransport{failNext: true}
	ok2 := &fakeTransport{}
	p.AddRemote(bucketID, ok1)
	p.AddRemote(bucketID, failing)
	p.AddRemote(bucketID, ok2)

	link := codec.Link{Hash: jaxcrypto.SumHash([]byte("head")), Tag: codec.TagDagCBOR}
	errs := p.AnnounceAll(context.Background(), bucketID, link)

	require.Len(t, errs, 1)
	require.Len(t, ok1.announced, 1)
	require.Len(t, ok2.announced, 1)
}
