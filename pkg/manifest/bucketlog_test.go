package manifest_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
)

func testBucketLogs(t *testing.T) map[string]manifest.BucketLog {
	t.Helper()
	bolt, err := manifest.NewBoltBucketLog(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]manifest.BucketLog{
		"mem":  manifest.NewMemBucketLog(),
		"bolt": bolt,
	}
}

func link(b byte) codec.Link {
	var h jaxcrypto.Hash
	h[0] = b
	return codec.Link{Hash: h, Tag: codec.TagDagCBOR}
}

func TestBucketLogAppendAndHead(t *testing.T) {
	for name, log := range testBucketLogs(t) {
		t.Run(name, func(t *testing.T) {
			bucketID := uuid.New()

			_, ok, err := log.Head(bucketID)
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, log.Append(bucketID, link(1), 0, codec.Link{}))

			head, ok, err := log.Head(bucketID)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, link(1), head)

			require.NoError(t, log.Append(bucketID, link(2), 1, link(1)))

			head, ok, err = log.Head(bucketID)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, link(2), head)
		})
	}
}

func TestBucketLogAppendRejectsStaleCAS(t *testing.T) {
	for name, log := range testBucketLogs(t) {
		t.Run(name, func(t *testing.T) {
			bucketID := uuid.New()
			require.NoError(t, log.Append(bucketID, link(1), 0, codec.Link{}))

			err := log.Append(bucketID, link(99), 1, link(42)) // wrong previous
			require.ErrorIs(t, err, manifest.ErrCASFailed)

			head, _, err := log.Head(bucketID)
			require.NoError(t, err)
			require.Equal(t, link(1), head, "a failed CAS must not mutate the head")
		})
	}
}

func TestBucketLogAppendRejectsNonGenesisWithoutPrevious(t *testing.T) {
	for name, log := range testBucketLogs(t) {
		t.Run(name, func(t *testing.T) {
			bucketID := uuid.New()
			err := log.Append(bucketID, link(1), 0, link(7))
			require.ErrorIs(t, err, manifest.ErrCASFailed)
		})
	}
}

func TestBucketLogListOrdersByHeight(t *testing.T) {
	for name, log := range testBucketLogs(t) {
		t.Run(name, func(t *testing.T) {
			bucketID := uuid.New()
			require.NoError(t, log.Append(bucketID, link(1), 0, codec.Link{}))
			require.NoError(t, log.Append(bucketID, link(2), 1, link(1)))
			require.NoError(t, log.Append(bucketID, link(3), 2, link(2)))

			entries, err := log.List(bucketID)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			require.Equal(t, uint64(0), entries[0].Height)
			require.Equal(t, uint64(2), entries[2].Height)
		})
	}
}

func TestBucketLogIsolatesBuckets(t *testing.T) {
	for name, log := range testBucketLogs(t) {
		t.Run(name, func(t *testing.T) {
			a, b := uuid.New(), uuid.New()
			require.NoError(t, log.Append(a, link(1), 0, codec.Link{}))
			require.NoError(t, log.Append(b, link(2), 0, codec.Link{}))

			headA, _, err := log.Head(a)
			require.NoError(t, err)
			require.Equal(t, link(1), headA)

			headB, _, err := log.Head(b)
			require.NoError(t, err)
			require.Equal(t, link(2), headB)
		})
	}
}
