/*
Package oplog implements JaxBucket's path operation log — a causally
ordered CRDT log of Add/Remove/Move entries (spec.md §3.4, §4.5). Entries
totally order by (lamport, author); MergeFrom interleaves a remote log by
that order and replays it against an empty tree, handling the four
conflict classes the spec names. add-add and move-move-divergent each
produce a Conflict offered to a Resolver, whose built-in ConflictFile
implementation renames the losing side rather than dropping it. cycle
(a move under its own descendant) is recorded as a Conflict but rejects
the move outright without consulting the resolver — there is no losing
side to relocate. move-remove never reaches the Resolver at all: it
resolves deterministically by lamport order (remove wins if strictly
later than the move, otherwise move wins), matching spec.md's stated
rule rather than the generic "pick a winner, rename the loser" pattern
add-add and move-move-divergent follow.

Given identical input logs and the same resolver, MergeFrom is
deterministic: any two peers that exchange the same ops compute the same
merged log and the same replayed path state. The tree BuildTree stores
from that state is not byte-identical across peers: every directory it
stores is sealed under a freshly generated secret, so its links differ.
*/
package oplog
