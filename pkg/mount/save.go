package mount

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/events"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
	"github.com/jaxbucket/jaxbucket/pkg/node"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
)

// SaveResult is what a successful Save reports (spec.md §4.4's
// `save(publish?) -> (link, previous, height)`).
type SaveResult struct {
	Link     codec.Link
	Previous codec.Link
	Height   uint64
}

// opsLogPayload is the DAG-CBOR shape sealed and stored for a Mount's
// PathOpLog (spec.md §4.6 step 2).
type opsLogPayload struct {
	Entries []oplog.OpEntry `cbor:"entries"`
}

// Save freezes the current entry tree, op log, and shares into a new
// signed Manifest, appends it to the bucket log, and publishes
// BucketUpdated. Every fallible step runs against local variables before
// any Mount field is touched, so a failure anywhere leaves m unchanged
// and nothing reaches the bucket log (spec.md §4.10).
func (m *Mount) Save(publish bool) (SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entryRef, err := node.Store(m.entryNode, m.blobs)
	if err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrStoreFailed, err)
	}

	opsLogLink, err := sealOpsLog(m.opsLog.Entries(), entryRef.Secret, m.blobs)
	if err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrStoreFailed, err)
	}

	reachable, err := node.CollectReachable(entryRef, m.blobs)
	if err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrStoreFailed, err)
	}
	reachable[opsLogLink.Hash] = struct{}{}

	specs, err := manifest.SpecsFromShares(m.manifest)
	if err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrSignFailed, err)
	}
	publishedNow := publish || m.manifest.Published
	shares, err := manifest.BuildShares(specs, entryRef.Secret, publishedNow)
	if err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrSignFailed, err)
	}

	var previous *codec.Link
	height := uint64(0)
	if !m.headLink.IsZero() {
		prev := m.headLink
		previous = &prev
		height = m.manifest.Height + 1
	}

	next := manifest.Manifest{
		BucketID:   m.manifest.BucketID,
		Name:       m.manifest.Name,
		Entry:      entryRef.Link,
		Pins:       sortedHashes(reachable),
		OpsLogLink: opsLogLink,
		Previous:   previous,
		Height:     height,
		Published:  publishedNow,
		Shares:     shares,
	}

	signed, err := manifest.Sign(next, m.secretKey)
	if err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrSignFailed, err)
	}

	manifestLink, err := manifest.Put(signed, m.blobs)
	if err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrStoreFailed, err)
	}

	if err := m.bucketLog.Append(m.manifest.BucketID, manifestLink, height, m.headLink); err != nil {
		return SaveResult{}, fmt.Errorf("mount: save: %w: %v", ErrStoreFailed, err)
	}

	signed.EntrySecret = entryRef.Secret
	m.manifest = signed
	m.entryRoot = entryRef
	m.pins = reachable
	m.headLink = manifestLink

	if m.events != nil {
		m.events.Publish(events.BucketUpdated(m.manifest.BucketID, manifestLink, height))
	}

	result := SaveResult{Link: manifestLink, Height: height}
	if previous != nil {
		result.Previous = *previous
	}
	return result, nil
}

func sortedHashes(set map[jaxcrypto.Hash]struct{}) []jaxcrypto.Hash {
	out := make([]jaxcrypto.Hash, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

func sealOpsLog(entries []oplog.OpEntry, secret jaxcrypto.Secret, blobs blob.Store) (codec.Link, error) {
	raw, err := codec.Marshal(opsLogPayload{Entries: entries})
	if err != nil {
		return codec.Link{}, fmt.Errorf("mount: encode ops log: %w", err)
	}
	sealed, err := secret.Seal(raw)
	if err != nil {
		return codec.Link{}, fmt.Errorf("mount: seal ops log: %w", err)
	}
	hash, err := blobs.Put(sealed)
	if err != nil {
		return codec.Link{}, fmt.Errorf("mount: put ops log: %w", err)
	}
	return codec.Link{Hash: hash, Tag: codec.TagRaw}, nil
}

func loadOpsLog(link codec.Link, secret jaxcrypto.Secret, blobs blob.Store) ([]oplog.OpEntry, error) {
	sealed, ok, err := blobs.Get(link.Hash)
	if err != nil {
		return nil, fmt.Errorf("mount: get ops log: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("mount: ops log %s: %w", link, ErrNotFound)
	}
	raw, err := secret.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("mount: open ops log: %w: %v", ErrDecryptFailed, err)
	}
	var payload opsLogPayload
	if err := codec.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("mount: decode ops log: %w", err)
	}
	return payload.Entries, nil
}
