package jaxcrypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// SecretSize is the length in bytes of a symmetric Secret.
const SecretSize = chacha20poly1305.KeySize // 32

// ErrIntegrityMismatch is returned by Open when the decrypted plaintext's
// hash does not match the hash prefix sealed alongside it.
var ErrIntegrityMismatch = errors.New("jaxcrypto: plaintext hash mismatch")

// ErrMalformedFrame is returned when a sealed blob is too short to contain
// a nonce and AEAD tag.
var ErrMalformedFrame = errors.New("jaxcrypto: malformed sealed frame")

// Secret is a 256-bit symmetric key used to seal one node or payload with
// ChaCha20-Poly1305.
type Secret [SecretSize]byte

// GenerateSecret draws a fresh Secret from crypto/rand.
func GenerateSecret() (Secret, error) {
	var s Secret
	if _, err := io.ReadFull(rand.Reader, s[:]); err != nil {
		return Secret{}, fmt.Errorf("jaxcrypto: generate secret: %w", err)
	}
	return s, nil
}

func (s Secret) aead() (cipher.AEAD, error) {
	return chacha20poly1305.New(s[:])
}

// Seal encrypts plaintext under s, producing:
//
//	nonce || AEAD(key=s, nonce, aad=nil, plaintext_hash(32B) || plaintext)
func (s Secret) Seal(plaintext []byte) ([]byte, error) {
	aead, err := s.aead()
	if err != nil {
		return nil, fmt.Errorf("jaxcrypto: seal: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("jaxcrypto: seal: nonce: %w", err)
	}

	h := SumHash(plaintext)
	msg := make([]byte, 0, HashSize+len(plaintext))
	msg = append(msg, h[:]...)
	msg = append(msg, plaintext...)

	out := make([]byte, 0, len(nonce)+len(msg)+aead.Overhead())
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, msg, nil)
	return out, nil
}

// Open decrypts a frame produced by Seal and verifies the embedded
// plaintext hash, returning ErrIntegrityMismatch if it does not match.
func (s Secret) Open(sealed []byte) ([]byte, error) {
	aead, err := s.aead()
	if err != nil {
		return nil, fmt.Errorf("jaxcrypto: open: %w", err)
	}

	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformedFrame
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	msg, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("jaxcrypto: open: %w", err)
	}
	if len(msg) < HashSize {
		return nil, ErrMalformedFrame
	}

	wantHash := msg[:HashSize]
	plaintext := msg[HashSize:]
	gotHash := SumHash(plaintext)
	if !hashEqual(gotHash[:], wantHash) {
		return nil, ErrIntegrityMismatch
	}
	return plaintext, nil
}

// ExtractPlaintextHash decrypts sealed and returns only the 32-byte
// plaintext-hash prefix, without returning (or requiring the caller to
// allocate) the full plaintext. Used for cheap dedup checks.
func (s Secret) ExtractPlaintextHash(sealed []byte) (Hash, error) {
	plaintext, err := s.Open(sealed)
	if err != nil {
		return Hash{}, err
	}
	return SumHash(plaintext), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Secret) MarshalBinary() ([]byte, error) {
	return s[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Secret) UnmarshalBinary(data []byte) error {
	if len(data) != SecretSize {
		return fmt.Errorf("jaxcrypto: secret must be %d bytes, got %d", SecretSize, len(data))
	}
	copy(s[:], data)
	return nil
}

func hashEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
