// Package peer is one participant's local view of every bucket it
// holds a share in: its identity, its blob store and bucket log, and
// an open cache of the Mounts it currently has loaded. It plays the
// role the teacher's pkg/manager.Manager plays for a cluster node,
// generalized from "the one Raft-replicated cluster state" to "however
// many buckets this identity participates in" — there is no cluster
// membership or consensus here, each bucket's own signed manifest
// chain is its own source of truth (spec.md §3.6).
//
// Peer also implements transport.Handler, so it is what answers a
// remote's Head/FetchManifest/FetchBlob/Announce calls (spec.md §4.8's
// responder side).
package peer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/events"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
	"github.com/jaxbucket/jaxbucket/pkg/metrics"
	"github.com/jaxbucket/jaxbucket/pkg/mount"
	"github.com/jaxbucket/jaxbucket/pkg/transport"
)

// Config configures a Peer, mirroring the teacher's Config/NewManager
// shape: plain data in, a ready-to-use value out.
type Config struct {
	Identity  jaxcrypto.SecretKey
	Blobs     blob.Store
	BucketLog manifest.BucketLog
	Events    *events.Broker
}

// Peer holds one identity's open Mounts and serves them to remote
// callers over a transport.Transport.
type Peer struct {
	identity  jaxcrypto.SecretKey
	blobs     blob.Store
	bucketLog manifest.BucketLog
	events    *events.Broker

	mu     sync.Mutex
	mounts map[uuid.UUID]*mount.Mount

	remotesMu sync.RWMutex
	remotes   map[uuid.UUID][]transport.Transport
}

// New constructs a Peer from cfg. cfg.Events may be nil, in which case
// every Mount this Peer opens publishes to nobody.
func New(cfg Config) *Peer {
	return &Peer{
		identity:  cfg.Identity,
		blobs:     cfg.Blobs,
		bucketLog: cfg.BucketLog,
		events:    cfg.Events,
		mounts:    make(map[uuid.UUID]*mount.Mount),
		remotes:   make(map[uuid.UUID][]transport.Transport),
	}
}

// Identity returns this Peer's public key.
func (p *Peer) Identity() jaxcrypto.PublicKey {
	return p.identity.Public()
}

// CreateBucket initializes a fresh bucket owned solely by this Peer
// and keeps it open in the mount cache.
func (p *Peer) CreateBucket(bucketID uuid.UUID, name string) (*mount.Mount, error) {
	m, err := mount.Init(bucketID, name, p.identity, p.blobs, p.bucketLog, p.events)
	if err != nil {
		return nil, fmt.Errorf("peer: create bucket: %w", err)
	}
	p.mu.Lock()
	p.mounts[bucketID] = m
	metrics.BucketsOpenTotal.Set(float64(len(p.mounts)))
	p.mu.Unlock()
	return m, nil
}

// OpenBucket loads the bucket at manifestLink under this Peer's
// identity, caching the result. A second OpenBucket for the same
// bucket ID returns the already-open Mount rather than reloading.
func (p *Peer) OpenBucket(bucketID uuid.UUID, manifestLink codec.Link) (*mount.Mount, error) {
	p.mu.Lock()
	if m, ok := p.mounts[bucketID]; ok {
		p.mu.Unlock()
		return m, nil
	}
	p.mu.Unlock()

	m, err := mount.Load(manifestLink, p.identity, p.blobs, p.bucketLog, p.events)
	if err != nil {
		return nil, fmt.Errorf("peer: open bucket: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.mounts[bucketID]; ok {
		return existing, nil
	}
	p.mounts[bucketID] = m
	metrics.BucketsOpenTotal.Set(float64(len(p.mounts)))
	return m, nil
}

// Mount returns the already-open Mount for bucketID, if any.
func (p *Peer) Mount(bucketID uuid.UUID) (*mount.Mount, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.mounts[bucketID]
	return m, ok
}

// AddRemote registers tr as a peer to fan Announce calls out to
// for bucketID — the set AnnounceAll walks. Nothing calls AnnounceAll
// automatically when the head changes.
func (p *Peer) AddRemote(bucketID uuid.UUID, tr transport.Transport) {
	p.remotesMu.Lock()
	defer p.remotesMu.Unlock()
	p.remotes[bucketID] = append(p.remotes[bucketID], tr)
}

// Remotes returns the transports currently registered for bucketID.
func (p *Peer) Remotes(bucketID uuid.UUID) []transport.Transport {
	p.remotesMu.RLock()
	defer p.remotesMu.RUnlock()
	out := make([]transport.Transport, len(p.remotes[bucketID]))
	copy(out, p.remotes[bucketID])
	return out
}

// AnnounceAll tells every registered remote for bucketID that its head
// is now newHead. Failures are collected but do not stop the fan-out —
// one unreachable mirror should not block announcing to the rest.
func (p *Peer) AnnounceAll(ctx context.Context, bucketID uuid.UUID, newHead codec.Link) []error {
	var errs []error
	for _, r := range p.Remotes(bucketID) {
		if err := r.Announce(ctx, bucketID, newHead); err != nil {
			errs = append(errs, err)
			metrics.AnnouncesTotal.WithLabelValues("error").Inc()
			continue
		}
		metrics.AnnouncesTotal.WithLabelValues("ok").Inc()
	}
	return errs
}

var _ transport.Handler = (*Peer)(nil)

// HandleHead implements transport.Handler by reading this Peer's own
// bucket log — the same one a local Mount.Save appends to — so a
// remote sees a head the instant a local save commits it.
func (p *Peer) HandleHead(ctx context.Context, bucketID uuid.UUID) (transport.HeadReply, error) {
	link, ok, err := p.bucketLog.Head(bucketID)
	if err != nil {
		return transport.HeadReply{}, fmt.Errorf("peer: head: %w", err)
	}
	return transport.HeadReply{Link: link, Present: ok}, nil
}

// HandleFetchManifest returns the raw encoded bytes behind link,
// letting the caller verify them before trusting anything inside.
func (p *Peer) HandleFetchManifest(ctx context.Context, link codec.Link) ([]byte, error) {
	data, ok, err := p.blobs.Get(link.Hash)
	if err != nil {
		return nil, fmt.Errorf("peer: fetch manifest: %w", err)
	}
	if !ok {
		return nil, transport.ErrUnknownBucket
	}
	return data, nil
}

// HandleFetchBlob streams the bytes behind hash from this Peer's store.
func (p *Peer) HandleFetchBlob(ctx context.Context, hash jaxcrypto.Hash) (io.ReadCloser, error) {
	r, ok, err := p.blobs.GetStream(hash)
	if err != nil {
		return nil, fmt.Errorf("peer: fetch blob: %w", err)
	}
	if !ok {
		return nil, transport.ErrUnknownBlob
	}
	return r, nil
}

// HandleAnnounce records that fromPub thinks bucketID's head is now
// newHead. This Peer does not pull eagerly on its own — it is the sync
// engine's job to notice this and schedule a pull (spec.md §4.8); here
// we only publish a best-effort notification so a listener can.
func (p *Peer) HandleAnnounce(ctx context.Context, fromPub jaxcrypto.PublicKey, bucketID uuid.UUID, newHead codec.Link) error {
	if p.events != nil {
		p.events.Publish(events.SyncProgress(bucketID, events.PhaseDialing, 0, 0))
	}
	return nil
}
