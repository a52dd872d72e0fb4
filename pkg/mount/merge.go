package mount

import (
	"fmt"

	"github.com/jaxbucket/jaxbucket/pkg/node"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
)

// MergeSummary reports what a merge_from did (spec.md §4.4's "summary"
// result).
type MergeSummary struct {
	Conflicts   int
	Synthesized int
}

// MergeFrom merges other's op log into m's by (lamport, author),
// replays the union against an empty tree, and adopts the resulting
// state as m's (spec.md §4.5). It does not save — callers decide when
// to freeze the merged state into a new manifest.
func (m *Mount) MergeFrom(other *Mount, resolver oplog.Resolver) (MergeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if m.manifest.BucketID != other.manifest.BucketID {
		return MergeSummary{}, fmt.Errorf("mount: merge_from: bucket mismatch (%s != %s)", m.manifest.BucketID, other.manifest.BucketID)
	}

	merged, replayed := oplog.MergeFrom(m.opsLog.Entries(), other.opsLog.Entries(), resolver)

	newRoot, err := oplog.BuildTree(replayed.State, m.blobs)
	if err != nil {
		return MergeSummary{}, fmt.Errorf("mount: merge_from: %w: %v", ErrStoreFailed, err)
	}
	newNode, err := node.Load(newRoot, m.blobs)
	if err != nil {
		return MergeSummary{}, fmt.Errorf("mount: merge_from: %w", err)
	}

	m.opsLog = oplog.FromEntries(merged)
	m.entryRoot = newRoot
	m.entryNode = newNode
	if err := m.recomputePins(); err != nil {
		return MergeSummary{}, fmt.Errorf("mount: merge_from: %w", err)
	}

	return MergeSummary{Conflicts: len(replayed.Conflicts), Synthesized: len(replayed.Synthesized)}, nil
}
