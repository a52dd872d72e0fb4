/*
Package events is the notification fan-out collaborators subscribe to
(spec.md §6.5): BucketUpdated after a successful save or sync commit,
BucketRevoked when a sync discovers our key was dropped from a bucket's
shares, and SyncProgress as a best-effort progress ticker. Mount, the
sync engine, and a FUSE cache invalidator are all collaborators in this
sense — the core only ever publishes, it never subscribes to itself.
*/
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
)

// Type identifies what kind of event a Subscriber received.
type Type string

const (
	TypeBucketUpdated Type = "bucket.updated"
	TypeBucketRevoked Type = "bucket.revoked"
	TypeSyncProgress  Type = "sync.progress"
)

// Phase names a point in the sync state machine (spec.md §4.8), carried
// on SyncProgress events for observability.
type Phase string

const (
	PhaseDialing          Phase = "dialing"
	PhaseFetchingHead     Phase = "fetching_head"
	PhaseValidatingChain  Phase = "validating_chain"
	PhaseDownloadingBlobs Phase = "downloading_blobs"
	PhaseMerging          Phase = "merging"
	PhaseSaving           Phase = "saving"
)

// Event is one notification published to subscribers. Exactly the fields
// relevant to Type are populated.
type Event struct {
	Type      Type
	Timestamp time.Time

	BucketID uuid.UUID

	// BucketUpdated
	NewHead codec.Link
	Height  uint64

	// BucketRevoked
	ByPeer string

	// SyncProgress
	Phase      Phase
	BlobsDone  int
	BlobsTotal int
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// Broker distributes events to every current subscriber, dropping
// events for a subscriber whose buffer is full rather than blocking the
// publisher — these are notifications, not a durable log.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]struct{}
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{subscribers: map[Subscriber]struct{}{}}
}

// Subscribe registers and returns a new Subscriber channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := make(Subscriber, 64)
	b.subscribers[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes it.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub)
	}
}

// Publish fans ev out to every current subscriber.
func (b *Broker) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		select {
		case sub <- ev:
		default:
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// BucketUpdated builds the event Mount.save and a sync commit publish.
func BucketUpdated(bucketID uuid.UUID, newHead codec.Link, height uint64) Event {
	return Event{Type: TypeBucketUpdated, BucketID: bucketID, NewHead: newHead, Height: height}
}

// BucketRevoked builds the event the sync engine publishes when a remote
// chain no longer lists our key.
func BucketRevoked(bucketID uuid.UUID, byPeer string) Event {
	return Event{Type: TypeBucketRevoked, BucketID: bucketID, ByPeer: byPeer}
}

// SyncProgress builds a best-effort progress tick.
func SyncProgress(bucketID uuid.UUID, phase Phase, done, total int) Event {
	return Event{Type: TypeSyncProgress, BucketID: bucketID, Phase: phase, BlobsDone: done, BlobsTotal: total}
}
