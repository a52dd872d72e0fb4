package manifest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// Put encodes m as canonical DAG-CBOR and writes it unencrypted to
// blobs — manifests carry no plaintext secrets of their own (entry_secret
// is per-share ECDH-wrapped already) so they need no sealing.
func Put(m Manifest, blobs blob.Store) (codec.Link, error) {
	raw, err := codec.Marshal(m)
	if err != nil {
		return codec.Link{}, fmt.Errorf("manifest: encode: %w", err)
	}
	hash, err := blobs.Put(raw)
	if err != nil {
		return codec.Link{}, fmt.Errorf("manifest: put: %w", err)
	}
	return codec.Link{Hash: hash, Tag: codec.TagDagCBOR}, nil
}

// Get decodes the manifest addressed by link.
func Get(link codec.Link, blobs blob.Store) (Manifest, error) {
	raw, ok, err := blobs.Get(link.Hash)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: get: %w", err)
	}
	if !ok {
		return Manifest{}, fmt.Errorf("manifest: %w: %s", ErrBlobMissing, link)
	}
	var m Manifest
	if err := codec.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("manifest: decode %s: %w", link, err)
	}
	return m, nil
}

// CollectPins walks bucketID's entire bucket-log history and returns the
// union of every manifest's own blob hash plus its declared Pins. A blob
// referenced by any past height is kept live, not just ones reachable from
// the current head — the manifest chain is a history a peer may walk back
// through (spec.md §4.9), not a latest-snapshot-only view, so GC must not
// treat earlier heights as collectible just because a newer one exists.
func CollectPins(bucketID uuid.UUID, bucketLog BucketLog, blobs blob.Store) (map[jaxcrypto.Hash]struct{}, error) {
	entries, err := bucketLog.List(bucketID)
	if err != nil {
		return nil, fmt.Errorf("manifest: collect pins: list: %w", err)
	}

	live := make(map[jaxcrypto.Hash]struct{}, len(entries))
	for _, entry := range entries {
		live[entry.Link.Hash] = struct{}{}

		m, err := Get(entry.Link, blobs)
		if err != nil {
			return nil, fmt.Errorf("manifest: collect pins: get %s: %w", entry.Link, err)
		}
		for _, pin := range m.Pins {
			live[pin] = struct{}{}
		}
	}
	return live, nil
}
