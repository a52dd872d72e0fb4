/*
Package mount implements Mount, the in-memory mutable view of one bucket
(spec.md §4.4): ls/cat/add/mkdir/rm/mv/merge_from/save/load, built on top
of pkg/node (tree), pkg/oplog (CRDT path log), and pkg/manifest (signed
chain).

Mount resolves a discrepancy in spec.md's Manifest schema: §4.6 step 2
describes sealing the op log with "a fresh ops_secret", but §3.5's
Manifest type carries no such field — only entry_secret is shared per
peer. Mount seals the op log with the same entry_secret a holder already
has from their share, rather than inventing an unspecified second wire
field.

Every exported method that mutates state takes Mount's write lock; reads
take the read lock. Suspension during save (blob puts, bucket-log append)
happens while holding the write lock, so bucket-log linearity for one
bucket is preserved by construction (spec.md §5).
*/
package mount
