package oplog

// MergeFrom implements spec.md §4.5's merge_from: union local and remote
// entries, sort by (lamport, author), replay against an empty tree with
// resolver handling conflicts, and return the merged log (including any
// resolver-synthesized entries) alongside the replayed tree state.
func MergeFrom(local, remote []OpEntry, resolver Resolver) (merged []OpEntry, replayed Replayed) {
	unioned := Union(local, remote)
	replayed = Replay(unioned, resolver)
	merged = Sorted(append(append([]OpEntry(nil), unioned...), replayed.Synthesized...))
	return merged, replayed
}
