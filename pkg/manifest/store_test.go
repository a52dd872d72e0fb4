package manifest_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
)

func appendToLog(t *testing.T, log manifest.BucketLog, blobs blob.Store, m manifest.Manifest, previous codec.Link) codec.Link {
	t.Helper()
	link, err := manifest.Put(m, blobs)
	require.NoError(t, err)
	require.NoError(t, log.Append(m.BucketID, link, m.Height, previous))
	return link
}

func TestCollectPinsUnionsEveryHeightNotJustHead(t *testing.T) {
	sk := mustIdentity(t)
	blobs := blob.NewMemStore()
	log := manifest.NewMemBucketLog()

	genesis := genesisFor(t, sk)
	genesisPinHash, err := blobs.Put([]byte("data referenced only at genesis"))
	require.NoError(t, err)
	genesis.Pins = []jaxcrypto.Hash{genesisPinHash}
	genesis, err = manifest.Sign(genesis, sk)
	require.NoError(t, err)
	genesisLink := appendToLog(t, log, blobs, genesis, codec.Link{})

	next := nextManifest(t, genesis, sk, func(m *manifest.Manifest) {
		m.Previous = &genesisLink
	})
	nextPinHash, err := blobs.Put([]byte("data referenced only at height 1"))
	require.NoError(t, err)
	next.Pins = []jaxcrypto.Hash{nextPinHash}
	next, err = manifest.Sign(next, sk)
	require.NoError(t, err)
	appendToLog(t, log, blobs, next, genesisLink)

	live, err := manifest.CollectPins(genesis.BucketID, log, blobs)
	require.NoError(t, err)

	require.Contains(t, live, genesisPinHash, "a blob pinned only by an earlier height must stay live")
	require.Contains(t, live, nextPinHash)
	require.Len(t, live, 4) // two manifest blobs themselves + the two pinned blobs
}

func TestCollectPinsEmptyBucketReturnsEmptySet(t *testing.T) {
	blobs := blob.NewMemStore()
	log := manifest.NewMemBucketLog()

	live, err := manifest.CollectPins(uuid.New(), log, blobs)
	require.NoError(t, err)
	require.Empty(t, live)
}
