/*
Package manifest implements JaxBucket's signed manifest chain (spec.md
§3.5, §3.6, §4.6, §4.7, §4.9): the Manifest type, per-share ECDH-wrapped
entry secrets, Ed25519 chain signing, and chain validation against an
already-known parent. BucketLog is the append-only, per-bucket sequence
of manifest links the core treats as the only mutable metadata outside
the blob store.
*/
package manifest
