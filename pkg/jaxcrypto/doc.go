/*
Package jaxcrypto provides the cryptographic primitives JaxBucket builds on:
Ed25519 identities, X25519-derived share secrets, ChaCha20-Poly1305 sealed
payloads, and BLAKE3 content hashes.

None of these primitives know about buckets, manifests or paths — they are
the lowest layer, consumed by pkg/node, pkg/manifest and pkg/mount.

# Sealed payload format

Every payload sealed with a Secret (file content, tree node, op log)
uses the same frame; share secrets use SealedShare instead (share.go):

	nonce (12 bytes) || AEAD_encrypt(key, nonce, aad=nil, plaintext_hash(32B) || plaintext)

The 32-byte plaintext hash inside the AEAD body lets Open verify integrity
beyond what the AEAD tag already guarantees, and lets a holder of the key
extract the plaintext hash without re-encrypting — useful for dedup.
*/
package jaxcrypto
