package jaxcrypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// hkdfInfo is the fixed HKDF info string for deriving a share-wrapping key,
// fixing the "secret_share wire suite" open question from spec.md §9.
const hkdfInfo = "jaxbucket-share-v1"

// SealedShare is the wire form of an ECDH-wrapped Secret: an ephemeral
// X25519 public key, an AEAD nonce, and the sealed ciphertext.
type SealedShare struct {
	EphemeralPublic [32]byte
	Nonce           [chacha20poly1305.NonceSize]byte
	Ciphertext      []byte
}

// ShareSecret wraps secret for targetPub using an ephemeral X25519 keypair:
//
//	shared  = X25519(ephemeral_sk, targetPub_montgomery)
//	key     = HKDF-SHA256(shared, salt=nil, info="jaxbucket-share-v1")
//	sealed  = ChaCha20Poly1305(key).Seal(nonce, secret)
//
// The ephemeral public key travels alongside the ciphertext so the
// recipient can recompute `shared` with their own identity scalar.
func ShareSecret(targetPub PublicKey, secret Secret) (SealedShare, error) {
	var ephPriv [32]byte
	if _, err := io.ReadFull(rand.Reader, ephPriv[:]); err != nil {
		return SealedShare{}, fmt.Errorf("jaxcrypto: share secret: ephemeral key: %w", err)
	}
	ephPriv[0] &= 248
	ephPriv[31] &= 127
	ephPriv[31] |= 64

	ephPubRaw, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return SealedShare{}, fmt.Errorf("jaxcrypto: share secret: ephemeral public: %w", err)
	}

	targetPoint, err := targetPub.x25519Point()
	if err != nil {
		return SealedShare{}, fmt.Errorf("jaxcrypto: share secret: %w", err)
	}

	shared, err := curve25519.X25519(ephPriv[:], targetPoint)
	if err != nil {
		return SealedShare{}, fmt.Errorf("jaxcrypto: share secret: ecdh: %w", err)
	}

	aead, err := wrapAEAD(shared)
	if err != nil {
		return SealedShare{}, err
	}

	var out SealedShare
	copy(out.EphemeralPublic[:], ephPubRaw)
	if _, err := io.ReadFull(rand.Reader, out.Nonce[:]); err != nil {
		return SealedShare{}, fmt.Errorf("jaxcrypto: share secret: nonce: %w", err)
	}
	out.Ciphertext = aead.Seal(nil, out.Nonce[:], secret[:], nil)
	return out, nil
}

// OpenShare unwraps a SealedShare produced by ShareSecret for sk's public
// key, recovering the original Secret.
func OpenShare(sk SecretKey, share SealedShare) (Secret, error) {
	scalar := sk.x25519Scalar()
	shared, err := curve25519.X25519(scalar[:], share.EphemeralPublic[:])
	if err != nil {
		return Secret{}, fmt.Errorf("jaxcrypto: open share: ecdh: %w", err)
	}

	aead, err := wrapAEAD(shared)
	if err != nil {
		return Secret{}, err
	}

	plain, err := aead.Open(nil, share.Nonce[:], share.Ciphertext, nil)
	if err != nil {
		return Secret{}, fmt.Errorf("jaxcrypto: open share: %w", err)
	}
	if len(plain) != SecretSize {
		return Secret{}, fmt.Errorf("jaxcrypto: open share: unwrapped secret has %d bytes, want %d", len(plain), SecretSize)
	}
	var s Secret
	copy(s[:], plain)
	return s, nil
}

func wrapAEAD(shared []byte) (cipher.AEAD, error) {
	kdf := hkdf.New(sha256.New, shared, nil, []byte(hkdfInfo))
	var key [chacha20poly1305.KeySize]byte
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return nil, fmt.Errorf("jaxcrypto: derive share key: %w", err)
	}
	return chacha20poly1305.New(key[:])
}
