// Package syncengine drives one pull of a bucket from one remote peer:
// spec.md §4.8's eight-step algorithm and state diagram. It is grounded
// on the teacher's reconciler loop (reconcile-observed-state-against-
// desired-state, retry with backoff, never partially commit) adapted
// from "converge a workload's running containers" to "converge a
// Mount's tree with a remote's manifest chain."
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/events"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/log"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
	"github.com/jaxbucket/jaxbucket/pkg/metrics"
	"github.com/jaxbucket/jaxbucket/pkg/mount"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
	"github.com/jaxbucket/jaxbucket/pkg/transport"
)

// State names a point in the per-(bucket, remote) pull state machine
// (spec.md §4.8).
type State string

const (
	StateIdle             State = "idle"
	StateDialing          State = "dialing"
	StateFetchingHead     State = "fetching_head"
	StateValidatingChain  State = "validating_chain"
	StateDownloadingBlobs State = "downloading_blobs"
	StateMerging          State = "merging"
	StateSaving           State = "saving"
	StateRevoked          State = "revoked"
	StateFailed           State = "failed"
	StateBackoff          State = "backoff"
)

var (
	// ErrInvalidChain is returned when any manifest in the walked-back
	// chain fails validation (spec.md §4.9).
	ErrInvalidChain = errors.New("syncengine: invalid chain")
	// ErrIncomplete is returned when one or more referenced blobs could
	// not be fetched from the remote within the configured retries.
	ErrIncomplete = errors.New("syncengine: incomplete: missing blobs")
	// ErrRevoked is returned when the puller's own key is absent from
	// the new head's shares.
	ErrRevoked = errors.New("syncengine: revoked")
	// ErrBlobHashMismatch is returned when a fetched blob's BLAKE3 does
	// not match the hash it was requested under — a protocol violation
	// by the remote, not a transient failure.
	ErrBlobHashMismatch = errors.New("syncengine: blob hash mismatch")
)

// maxChainWalk bounds how many ancestors Pull will walk back looking
// for a manifest it already has, guarding against an unbounded or
// cyclic chain from a misbehaving remote.
const maxChainWalk = 1 << 16

// Options tunes one Pull call. The zero value is usable; fields default
// to the values spec.md §4.10 implies.
type Options struct {
	// BlobRetries bounds per-hash FetchBlob retries before the whole
	// attempt fails Incomplete. Zero means 5.
	BlobRetries uint64
	// Resolver picks conflict winners during merge_from. Nil means
	// oplog.ConflictFile.
	Resolver oplog.Resolver
}

func (o Options) blobRetries() uint64 {
	if o.BlobRetries == 0 {
		return 5
	}
	return o.BlobRetries
}

func (o Options) resolver() oplog.Resolver {
	if o.Resolver == nil {
		return oplog.ConflictFile{}
	}
	return o.Resolver
}

// Result reports what one Pull call did.
type Result struct {
	State State
	// Mount is the resulting local Mount: local itself (possibly
	// mutated), or, when local was nil, a freshly bootstrapped Mount
	// over the caller's own blobs and bucketLog that the caller should
	// keep as its view of this bucket going forward.
	Mount *mount.Mount
	// Saved is non-zero-valued when Pull committed a new local save.
	Saved mount.SaveResult
	// Merge is the merge_from summary, populated only when the merge
	// branch of step 6 ran (not the replace branch, and not bootstrap).
	Merge mount.MergeSummary
	// Merged reports whether the merge branch ran (true) or the
	// replace branch ran (false) — only meaningful when State ==
	// StateIdle after having reached step 6.
	Merged bool
}

// Pull runs spec.md §4.8's algorithm once: fetch remote's head for
// bucketID, walk back any unknown ancestors, validate the chain,
// download missing blobs, and reconcile into local.
//
// local is nil the first time this peer ever sees bucketID: there is
// no local state to merge into, so Pull bootstraps by loading the
// validated remote head directly against the caller's own blobs and
// bucketLog and returns it as Result.Mount, with no new save (nothing
// about the bucket's shared history changed — this peer is only now
// catching up its local blob cache to it). On every later call, pass
// the Mount from the previous Result (or the caller's already-open
// Mount) back in as local.
func Pull(ctx context.Context, bucketID uuid.UUID, local *mount.Mount, remote transport.Transport, sk jaxcrypto.SecretKey, blobs blob.Store, bucketLog manifest.BucketLog, broker *events.Broker, opts Options) (result Result, err error) {
	plog := log.WithComponent("syncengine").With().Str("bucket_id", bucketID.String()).Logger()

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.SyncPullDuration)
		metrics.SyncPullsTotal.WithLabelValues(string(result.State)).Inc()
		if result.State == StateRevoked {
			metrics.SyncRevocationsTotal.Inc()
		}
		metrics.SyncConflictsTotal.Add(float64(result.Merge.Conflicts))

		if err != nil {
			plog.Error().Err(err).Str("state", string(result.State)).Msg("pull failed")
		} else {
			plog.Debug().Str("state", string(result.State)).Bool("merged", result.Merged).Msg("pull finished")
		}
	}()

	progress := func(phase events.Phase, done, total int) {
		if broker != nil {
			broker.Publish(events.SyncProgress(bucketID, phase, done, total))
		}
	}

	localHead := codec.Link{}
	if local != nil {
		localHead = local.HeadLink()
	}

	progress(events.PhaseDialing, 0, 0)
	progress(events.PhaseFetchingHead, 0, 0)
	head, err := remote.Head(ctx, bucketID)
	if err != nil {
		return Result{State: StateFailed}, fmt.Errorf("syncengine: head: %w", err)
	}
	if !head.Present {
		return Result{State: StateIdle, Mount: local}, nil
	}
	if local != nil && head.Link == localHead {
		return Result{State: StateIdle, Mount: local}, nil
	}

	chain, err := walkBackChain(ctx, remote, blobs, head.Link, localHead)
	if err != nil {
		return Result{State: StateFailed}, fmt.Errorf("syncengine: %w: %v", ErrInvalidChain, err)
	}

	progress(events.PhaseValidatingChain, 0, 0)
	if err := validateChain(chain, blobs); err != nil {
		return Result{State: StateFailed}, fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}

	progress(events.PhaseDownloadingBlobs, 0, 0)
	if err := downloadMissingBlobs(ctx, chain, remote, blobs, opts.blobRetries(), func(done, total int) {
		progress(events.PhaseDownloadingBlobs, done, total)
	}); err != nil {
		return Result{State: StateFailed}, err
	}

	progress(events.PhaseMerging, 0, 0)

	if local == nil {
		bootstrapped, err := mount.Load(head.Link, sk, blobs, bucketLog, broker)
		if err != nil {
			if errors.Is(err, manifest.ErrNotAuthorized) {
				if broker != nil {
					broker.Publish(events.BucketRevoked(bucketID, ""))
				}
				return Result{State: StateRevoked}, fmt.Errorf("%w: %v", ErrRevoked, err)
			}
			return Result{State: StateFailed}, fmt.Errorf("syncengine: bootstrap load: %w", err)
		}
		return Result{State: StateIdle, Mount: bootstrapped}, nil
	}

	remoteMount, err := mount.Load(head.Link, sk, blobs, noopBucketLog{}, nil)
	if err != nil {
		if errors.Is(err, manifest.ErrNotAuthorized) {
			if broker != nil {
				broker.Publish(events.BucketRevoked(bucketID, ""))
			}
			return Result{State: StateRevoked}, fmt.Errorf("%w: %v", ErrRevoked, err)
		}
		return Result{State: StateFailed}, fmt.Errorf("syncengine: load remote: %w", err)
	}

	result := Result{Mount: local}
	if !local.HasLocalOps() {
		local.ReplaceWith(remoteMount)
		result.Merged = false
	} else {
		summary, err := local.MergeFrom(remoteMount, opts.resolver())
		if err != nil {
			return Result{State: StateFailed}, fmt.Errorf("syncengine: merge: %w", err)
		}
		local.AdoptShares(remoteMount)
		result.Merge = summary
		result.Merged = true
	}

	progress(events.PhaseSaving, 0, 0)
	publish := local.IsPublished() || remoteMount.IsPublished()
	saved, err := local.Save(publish)
	if err != nil {
		return Result{State: StateFailed}, fmt.Errorf("syncengine: save: %w", err)
	}
	result.State = StateIdle
	result.Saved = saved
	return result, nil
}

// chainLink is one manifest fetched while walking back from a remote
// head, oldest-first after walkBackChain reverses its working list.
type chainLink struct {
	link    codec.Link
	m       manifest.Manifest
	isLocal bool // true for the stop-point manifest we already had
}

// walkBackChain fetches head and its ancestors from remote until it
// reaches localHead (already known) or a manifest with no Previous
// (genesis), returning the walked links oldest-first. The stop-point
// manifest itself is included (marked isLocal) so validateChain has a
// parent to check the first new link against.
func walkBackChain(ctx context.Context, remote transport.Transport, blobs blob.Store, head, localHead codec.Link) ([]chainLink, error) {
	var walked []chainLink // newest-first while building
	cur := head

	for i := 0; i < maxChainWalk; i++ {
		if !localHead.IsZero() && cur == localHead {
			m, err := manifest.Get(cur, blobs)
			if err != nil {
				return nil, fmt.Errorf("load known ancestor %s: %w", cur, err)
			}
			walked = append(walked, chainLink{link: cur, m: m, isLocal: true})
			break
		}

		raw, err := remote.FetchManifest(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("fetch manifest %s: %w", cur, err)
		}
		var m manifest.Manifest
		if err := codec.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode manifest %s: %w", cur, err)
		}
		if got, err := blobs.Put(raw); err != nil {
			return nil, fmt.Errorf("store manifest %s: %w", cur, err)
		} else if got != cur.Hash {
			return nil, fmt.Errorf("manifest %s: %w: remote served content hashing to %s", cur, ErrBlobHashMismatch, got)
		}

		walked = append(walked, chainLink{link: cur, m: m})

		if m.Previous == nil {
			break
		}
		prev := *m.Previous
		if have, err := blobs.Has(prev.Hash); err == nil && have {
			parent, err := manifest.Get(prev, blobs)
			if err != nil {
				return nil, fmt.Errorf("load known ancestor %s: %w", prev, err)
			}
			walked = append(walked, chainLink{link: prev, m: parent, isLocal: true})
			break
		}
		cur = prev
	}

	// reverse to oldest-first
	out := make([]chainLink, len(walked))
	for i, w := range walked {
		out[len(walked)-1-i] = w
	}
	return out, nil
}

// validateChain runs manifest.Validate over every new (non-isLocal)
// link in chain against its immediate predecessor.
func validateChain(chain []chainLink, blobs blob.Store) error {
	for i, cl := range chain {
		if cl.isLocal {
			continue
		}
		if i == 0 {
			if cl.m.Previous != nil {
				return fmt.Errorf("new chain segment must start at a known ancestor: %s", cl.link)
			}
			if err := manifest.Validate(cl.m, cl.link, nil, codec.Link{}, manifest.ValidateOptions{}); err != nil {
				return fmt.Errorf("%s: %w", cl.link, err)
			}
			continue
		}
		parent := chain[i-1]
		if err := manifest.Validate(cl.m, cl.link, &parent.m, parent.link, manifest.ValidateOptions{}); err != nil {
			return fmt.Errorf("%s: %w", cl.link, err)
		}
	}
	return nil
}

// downloadMissingBlobs fetches, hash-verifies, and stores every blob
// referenced by a chain's new manifests that is not already present
// locally (spec.md §4.8 step 4, §4.10's per-hash retry policy).
func downloadMissingBlobs(ctx context.Context, chain []chainLink, remote transport.Transport, blobs blob.Store, maxRetries uint64, progress func(done, total int)) error {
	need := map[jaxcrypto.Hash]struct{}{}
	for _, cl := range chain {
		if cl.isLocal {
			continue
		}
		for _, h := range cl.m.Pins {
			need[h] = struct{}{}
		}
	}

	total := 0
	for h := range need {
		if have, err := blobs.Has(h); err != nil {
			return fmt.Errorf("syncengine: check blob %s: %w", h, err)
		} else if !have {
			total++
		}
	}

	done := 0
	progress(done, total)
	for h := range need {
		if have, err := blobs.Has(h); err != nil {
			return fmt.Errorf("syncengine: check blob %s: %w", h, err)
		} else if have {
			continue
		}

		if err := fetchOneBlobWithRetry(ctx, remote, blobs, h, maxRetries); err != nil {
			return err
		}
		done++
		progress(done, total)
	}
	return nil
}

func fetchOneBlobWithRetry(ctx context.Context, remote transport.Transport, blobs blob.Store, h jaxcrypto.Hash, maxRetries uint64) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 100 * time.Millisecond
	eb.MaxInterval = 5 * time.Second
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)

	operation := func() error {
		r, err := remote.FetchBlob(ctx, h)
		if err != nil {
			return fmt.Errorf("fetch blob %s: %w", h, err)
		}
		data, err := io.ReadAll(r)
		closeErr := r.Close()
		if err != nil {
			return fmt.Errorf("read blob %s: %w", h, err)
		}
		if closeErr != nil {
			return fmt.Errorf("close blob stream %s: %w", h, closeErr)
		}
		if jaxcrypto.SumHash(data) != h {
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrBlobHashMismatch, h))
		}
		if _, err := blobs.Put(data); err != nil {
			return fmt.Errorf("store blob %s: %w", h, err)
		}
		metrics.SyncBlobsDownloadedTotal.Inc()
		return nil
	}

	if err := backoff.Retry(operation, bo); err != nil {
		return fmt.Errorf("%w: %w", ErrIncomplete, err)
	}
	return nil
}

// noopBucketLog is passed to mount.Load when reconstructing a
// read-only remote view: Pull never calls Append/Head/List through
// this Mount, only Load's internal decode path, which does not touch
// the bucket log at all.
type noopBucketLog struct{}

func (noopBucketLog) Head(uuid.UUID) (codec.Link, bool, error)              { return codec.Link{}, false, nil }
func (noopBucketLog) Append(uuid.UUID, codec.Link, uint64, codec.Link) error { return nil }
func (noopBucketLog) List(uuid.UUID) ([]manifest.LogEntry, error)           { return nil, nil }

var _ manifest.BucketLog = noopBucketLog{}
