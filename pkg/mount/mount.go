package mount

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/events"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
	"github.com/jaxbucket/jaxbucket/pkg/node"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
)

// Mount is the in-memory mutable view of one bucket (spec.md §4.4):
// ls/cat/add/mkdir/rm/mv/merge_from/save, built on the content-addressed
// tree (pkg/node), the CRDT path log (pkg/oplog), and the signed chain
// (pkg/manifest).
//
// A Mount is not safe for concurrent use except through its own
// exported methods, which take mu themselves.
type Mount struct {
	mu sync.RWMutex

	manifest manifest.Manifest
	// headLink is the link of the last manifest this Mount appended to
	// the bucket log, or the zero Link if it has never saved (fresh
	// Init, no save yet). It is the "previous" save writes next.
	headLink codec.Link

	entryRoot node.Ref
	entryNode node.Node

	opsLog *oplog.PathOpLog
	pins   map[jaxcrypto.Hash]struct{}

	blobs     blob.Store
	bucketLog manifest.BucketLog
	secretKey jaxcrypto.SecretKey
	events    *events.Broker
}

// Init creates a fresh bucket: an empty root directory, owned solely by
// sk's holder, at height 0 and not yet saved.
func Init(bucketID uuid.UUID, name string, sk jaxcrypto.SecretKey, blobs blob.Store, bucketLog manifest.BucketLog, broker *events.Broker) (*Mount, error) {
	root := node.NewDir()
	entryRef, err := node.Store(root, blobs)
	if err != nil {
		return nil, fmt.Errorf("mount: init: %w", err)
	}

	owner := sk.Public()
	shares, err := manifest.BuildShares([]manifest.ShareSpec{
		{Pub: owner, Role: manifest.RoleOwner},
	}, entryRef.Secret, false)
	if err != nil {
		return nil, fmt.Errorf("mount: init: %w", err)
	}

	pins, err := node.CollectReachable(entryRef, blobs)
	if err != nil {
		return nil, fmt.Errorf("mount: init: %w", err)
	}

	return &Mount{
		manifest: manifest.Manifest{
			BucketID: bucketID,
			Name:     name,
			Entry:    entryRef.Link,
			Shares:   shares,
			Height:   0,
		},
		entryRoot: entryRef,
		entryNode: root,
		opsLog:    oplog.New(),
		pins:      pins,
		blobs:     blobs,
		bucketLog: bucketLog,
		secretKey: sk,
		events:    broker,
	}, nil
}

// Load reconstructs a Mount from a manifest link: decodes the manifest,
// resolves entry_secret from sk's own share, and decrypts the entry
// root and op log.
func Load(manifestLink codec.Link, sk jaxcrypto.SecretKey, blobs blob.Store, bucketLog manifest.BucketLog, broker *events.Broker) (*Mount, error) {
	m, err := manifest.Get(manifestLink, blobs)
	if err != nil {
		return nil, fmt.Errorf("mount: load: %w", err)
	}

	entrySecret, err := manifest.ResolveEntrySecret(m, sk)
	if err != nil {
		return nil, fmt.Errorf("mount: load: %w", err)
	}

	entryRef := node.Ref{Link: m.Entry, Secret: entrySecret}
	entryNode, err := node.Load(entryRef, blobs)
	if err != nil {
		return nil, fmt.Errorf("mount: load: %w", err)
	}

	var entries []oplog.OpEntry
	if !m.OpsLogLink.IsZero() {
		entries, err = loadOpsLog(m.OpsLogLink, entrySecret, blobs)
		if err != nil {
			return nil, fmt.Errorf("mount: load: %w", err)
		}
	}

	pins, err := node.CollectReachable(entryRef, blobs)
	if err != nil {
		return nil, fmt.Errorf("mount: load: %w", err)
	}

	return &Mount{
		manifest:  m,
		headLink:  manifestLink,
		entryRoot: entryRef,
		entryNode: entryNode,
		opsLog:    oplog.FromEntries(entries),
		pins:      pins,
		blobs:     blobs,
		bucketLog: bucketLog,
		secretKey: sk,
		events:    broker,
	}, nil
}

// BucketID returns the bucket this Mount is a view of.
func (m *Mount) BucketID() uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest.BucketID
}

// IsPublished reports the manifest's published flag.
func (m *Mount) IsPublished() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest.Published
}

// Height reports the height of the last manifest this Mount saved (or
// loaded from).
func (m *Mount) Height() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest.Height
}

// HeadLink returns the link of the last manifest this Mount saved, or
// the zero Link if it has never saved.
func (m *Mount) HeadLink() codec.Link {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headLink
}

// HasLocalOps reports whether this Mount's op log carries any entries
// at all. A sync engine pulling a remote head uses this to decide
// between the cheap path (local has no work of its own, so the remote
// can simply replace it) and merge_from (spec.md §4.8 step 6).
func (m *Mount) HasLocalOps() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opsLog.Len() > 0
}
