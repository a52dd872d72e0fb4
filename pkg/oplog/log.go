package oplog

import (
	"fmt"
	"sort"
	"time"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
)

// PathOpLog is an append-only, causally-ordered log of path operations
// for one bucket (spec.md §3.4). It is not safe for concurrent use; the
// owning Mount serializes access under its own lock.
type PathOpLog struct {
	entries []OpEntry
	clock   uint64
}

// New returns an empty PathOpLog.
func New() *PathOpLog {
	return &PathOpLog{}
}

// FromEntries rebuilds a PathOpLog from a decoded entry slice (e.g. after
// loading it from the blob store), restoring the lamport clock to the
// highest value seen.
func FromEntries(entries []OpEntry) *PathOpLog {
	l := &PathOpLog{entries: append([]OpEntry(nil), entries...)}
	for _, e := range entries {
		l.Observe(e.Lamport)
	}
	return l
}

// Entries returns the log's entries in append order. The slice must not
// be mutated by the caller.
func (l *PathOpLog) Entries() []OpEntry {
	return l.entries
}

// Len reports the number of entries.
func (l *PathOpLog) Len() int { return len(l.entries) }

// Observe advances the local lamport clock to at least seen, the
// standard Lamport-clock rule for incorporating a remote timestamp
// before assigning lamport values to new local operations.
func (l *PathOpLog) Observe(seen uint64) {
	if seen > l.clock {
		l.clock = seen
	}
}

func (l *PathOpLog) nextLamport() uint64 {
	l.clock++
	return l.clock
}

func (l *PathOpLog) append(author jaxcrypto.PublicKey, kind Kind, build func(*OpEntry)) OpEntry {
	e := OpEntry{
		OpID:     uint64(len(l.entries)),
		Author:   author,
		Lamport:  l.nextLamport(),
		WallTime: time.Now().Unix(),
		Kind:     kind,
	}
	build(&e)
	l.entries = append(l.entries, e)
	return e
}

// AppendAdd records an Add(path) operation.
func (l *PathOpLog) AppendAdd(author jaxcrypto.PublicKey, path string, link codec.Link, secret jaxcrypto.Secret, size uint64, childKind node.Kind) OpEntry {
	return l.append(author, KindAdd, func(e *OpEntry) {
		e.Path = path
		e.Link = link
		e.Secret = secret
		e.Size = size
		e.ChildKind = childKind
	})
}

// AppendRemove records a Remove(path) operation.
func (l *PathOpLog) AppendRemove(author jaxcrypto.PublicKey, path string) OpEntry {
	return l.append(author, KindRemove, func(e *OpEntry) {
		e.Path = path
	})
}

// AppendMove records a Move(src, dst) operation.
func (l *PathOpLog) AppendMove(author jaxcrypto.PublicKey, src, dst string) OpEntry {
	return l.append(author, KindMove, func(e *OpEntry) {
		e.Path = src
		e.Dst = dst
	})
}

// Sorted returns entries ordered by (lamport, author), stable on exact
// duplicates — the order merge_from replays against an empty tree.
func Sorted(entries []OpEntry) []OpEntry {
	out := append([]OpEntry(nil), entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return order(out[i], out[j])
	})
	return out
}

// Union concatenates two logs' entries, drops duplicates already present
// on both sides, and sorts the result by (lamport, author) — the first
// step of merge_from (spec.md §4.5 step 1). An entry's identity is
// (author, op id, kind): (author, op id) is assigned once, at the
// entry's original author, and carried unchanged through every peer it
// syncs to, so it is stable across logs that have each independently
// observed it. Kind is included because disposeLoser stamps a
// synthesized Add with its losing op's (author, op id) to make
// independent resolutions of the same conflict converge to one entry —
// that synthesized Add must not collide with the original (non-Add)
// loser op it was derived from, which the merged log still carries.
func Union(a, b []OpEntry) []OpEntry {
	seen := make(map[string]struct{}, len(a)+len(b))
	merged := make([]OpEntry, 0, len(a)+len(b))
	for _, e := range append(append([]OpEntry(nil), a...), b...) {
		key := fmt.Sprintf("%s:%d:%d", e.Author.Hex(), e.OpID, e.Kind)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, e)
	}
	return Sorted(merged)
}
