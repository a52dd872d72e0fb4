package jaxcrypto

import (
	"encoding/base32"
	"fmt"

	"lukechampine.com/blake3"
)

// HashSize is the length in bytes of a Hash.
const HashSize = 32

// Hash is a 32-byte BLAKE3 digest identifying a blob by content.
type Hash [HashSize]byte

// SumHash returns the BLAKE3 digest of data.
func SumHash(data []byte) Hash {
	var h Hash
	sum := blake3.Sum256(data)
	copy(h[:], sum[:])
	return h
}

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// String renders the hash as unpadded base32, the encoding spec.md §3.1
// requires for user-facing contexts.
func (h Hash) String() string {
	return b32.EncodeToString(h[:])
}

// ParseHash decodes a base32 string produced by Hash.String.
func ParseHash(s string) (Hash, error) {
	raw, err := b32.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("jaxcrypto: malformed hash %q: %w", s, err)
	}
	if len(raw) != HashSize {
		return Hash{}, fmt.Errorf("jaxcrypto: hash %q has %d bytes, want %d", s, len(raw), HashSize)
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// IsZero reports whether h is the all-zero hash (never a valid digest of
// real content, used as a sentinel for "no link").
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalBinary implements encoding.BinaryMarshaler, so CBOR (and other
// codecs that recognize it) encode a Hash as a compact byte string
// instead of an array of integers.
func (h Hash) MarshalBinary() ([]byte, error) {
	return h[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) != HashSize {
		return fmt.Errorf("jaxcrypto: hash must be %d bytes, got %d", HashSize, len(data))
	}
	copy(h[:], data)
	return nil
}
