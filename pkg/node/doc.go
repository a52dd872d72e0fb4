/*
Package node implements JaxBucket's immutable encrypted directory tree
(spec.md §3.3, §4.3). A Node is either a file leaf or a directory whose
children are named references, each carrying its own Secret so that a
reader holding a subtree's secret can decrypt that subtree but never walk
upward past it.

Nodes are content-addressed and immutable: Update copies the spine from a
changed leaf up to the root, allocating a fresh secret and link for every
rewritten directory, and returns the new root reference. Old nodes become
unreferenced but are not deleted here — retention is a pins-set decision
made by the caller (pkg/mount).
*/
package node
