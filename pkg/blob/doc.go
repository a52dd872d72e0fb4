/*
Package blob defines the content-addressed byte store contract JaxBucket
consumes as an external collaborator (spec.md §4.2, §6.1), plus two
reference implementations: an in-memory store for tests and a bbolt-backed
store for single-process deployments.

Put is idempotent and content-addressed: equal bytes always produce the
same jaxcrypto.Hash, and a second Put of already-stored bytes is a no-op.
Every implementation must verify BLAKE3(bytes) == hash before accepting a
write and reject inserts over MaxBlobSize.
*/
package blob
