package jaxcrypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/curve25519"
)

// PublicKey is an Ed25519 public key. It also birationally maps to an
// X25519 (Montgomery) point, used for ECDH share-secret wrapping — see
// ed25519PointToX25519.
type PublicKey struct {
	raw ed25519.PublicKey
}

// SecretKey is an Ed25519 private key bound to one Peer identity.
type SecretKey struct {
	raw ed25519.PrivateKey
}

// GenerateIdentity creates a fresh Ed25519 keypair.
func GenerateIdentity() (SecretKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SecretKey{}, fmt.Errorf("jaxcrypto: generate identity: %w", err)
	}
	return SecretKey{raw: priv}, nil
}

// Public returns the PublicKey for sk.
func (sk SecretKey) Public() PublicKey {
	return PublicKey{raw: sk.raw.Public().(ed25519.PublicKey)}
}

// Sign signs msg, producing a 64-byte Ed25519 signature.
func (sk SecretKey) Sign(msg []byte) []byte {
	return ed25519.Sign(sk.raw, msg)
}

// Bytes returns the raw 64-byte Ed25519 private key.
func (sk SecretKey) Bytes() []byte {
	return []byte(sk.raw)
}

// SecretKeyFromBytes reconstructs a SecretKey from its raw 64-byte form.
func SecretKeyFromBytes(raw []byte) (SecretKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return SecretKey{}, fmt.Errorf("jaxcrypto: secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return SecretKey{raw: ed25519.PrivateKey(cp)}, nil
}

// x25519Scalar derives the clamped X25519 private scalar that corresponds
// to sk under the standard Ed25519/X25519 birational equivalence: the
// first half of SHA-512(seed), clamped per RFC 7748. This is the same
// scalar ed25519.Sign derives internally; crypto/ed25519 does not export
// it, so it is recomputed here.
func (sk SecretKey) x25519Scalar() [32]byte {
	h := sha512.Sum512(sk.raw.Seed())
	var scalar [32]byte
	copy(scalar[:], h[:32])
	scalar[0] &= 248
	scalar[31] &= 127
	scalar[31] |= 64
	return scalar
}

// Bytes returns the raw 32-byte Ed25519 public key.
func (pk PublicKey) Bytes() []byte {
	return []byte(pk.raw)
}

// Hex returns the hex encoding of the public key, the wire form spec.md
// §3.5 uses as the key type in Manifest.Shares.
func (pk PublicKey) Hex() string {
	return hex.EncodeToString(pk.raw)
}

// PublicKeyFromHex parses the hex form produced by Hex.
func PublicKeyFromHex(s string) (PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("jaxcrypto: malformed public key %q: %w", s, err)
	}
	return PublicKeyFromBytes(raw)
}

// PublicKeyFromBytes wraps a raw 32-byte Ed25519 public key.
func PublicKeyFromBytes(raw []byte) (PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("jaxcrypto: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	return PublicKey{raw: ed25519.PublicKey(cp)}, nil
}

// Equal reports whether two public keys are the same identity.
func (pk PublicKey) Equal(other PublicKey) bool {
	return pk.raw.Equal(other.raw)
}

// Less gives PublicKey a total order, used to break (lamport, author)
// ties deterministically across peers.
func (pk PublicKey) Less(other PublicKey) bool {
	return bytes.Compare(pk.raw, other.raw) < 0
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return pk.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	parsed, err := PublicKeyFromBytes(data)
	if err != nil {
		return err
	}
	*pk = parsed
	return nil
}

// Verify checks an Ed25519 signature against pk.
func Verify(pk PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pk.raw, msg, sig)
}

// x25519Point returns the X25519 (Montgomery u-coordinate) point matching
// pk's Edwards point, computable by anyone who only holds the public key —
// no seed required.
func (pk PublicKey) x25519Point() ([]byte, error) {
	p, err := new(edwards25519.Point).SetBytes(pk.raw)
	if err != nil {
		return nil, fmt.Errorf("jaxcrypto: invalid ed25519 point: %w", err)
	}
	return p.BytesMontgomery(), nil
}

// ecdh computes the X25519 shared point between sk and peerPub's derived
// Montgomery point.
func ecdh(sk SecretKey, peerPub PublicKey) ([]byte, error) {
	peerPoint, err := peerPub.x25519Point()
	if err != nil {
		return nil, err
	}
	scalar := sk.x25519Scalar()
	shared, err := curve25519.X25519(scalar[:], peerPoint)
	if err != nil {
		return nil, fmt.Errorf("jaxcrypto: ecdh: %w", err)
	}
	return shared, nil
}
