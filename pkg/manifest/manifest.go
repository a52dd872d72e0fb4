package manifest

import (
	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// Role is a share's authorization level (spec.md §4.7).
type Role uint8

const (
	RoleOwner Role = iota
	RoleMirror
)

func (r Role) String() string {
	if r == RoleOwner {
		return "owner"
	}
	return "mirror"
}

// Share is one bucket participant's role and, when applicable, their
// ECDH-wrapped copy of the manifest's entry_secret.
type Share struct {
	Role        Role                   `cbor:"role"`
	SecretShare *jaxcrypto.SealedShare `cbor:"secret_share,omitempty"`
}

// Manifest is the signed, content-addressed snapshot of one bucket
// revision (spec.md §3.5).
type Manifest struct {
	BucketID    uuid.UUID                   `cbor:"bucket_id"`
	Name        string                      `cbor:"name"`
	Entry       codec.Link                  `cbor:"entry"`

	// EntrySecret never goes on the wire: spec.md §3.5 lists entry_secret
	// as a schema field but its own rationale is "encrypted per-share in
	// shares" — the plaintext secret is delivered exclusively through
	// each Share.SecretShare. Keeping it out of the signed encoding means
	// a manifest blob (stored unencrypted) never leaks it; callers that
	// hold it locally (Mount, right after a save) pass it around as a
	// plain value instead of reading it back off a decoded Manifest.
	EntrySecret jaxcrypto.Secret `cbor:"-"`

	Pins        []jaxcrypto.Hash            `cbor:"pins"`
	OpsLogLink  codec.Link                  `cbor:"ops_log_link"`
	Previous    *codec.Link                 `cbor:"previous,omitempty"`
	Height      uint64                      `cbor:"height"`
	Published   bool                        `cbor:"published"`
	Shares      map[string]Share            `cbor:"shares"`
	Author      *jaxcrypto.PublicKey        `cbor:"author,omitempty"`
	Signature   []byte                      `cbor:"signature,omitempty"`
}

// signingView is Manifest with Signature always cleared, the exact byte
// shape that gets signed and re-derived for verification (spec.md §4.6:
// "signature covers every field except signature itself").
func (m Manifest) signingView() Manifest {
	out := m
	out.Signature = nil
	return out
}

// SigningBytes returns the canonical DAG-CBOR encoding of m with
// Signature cleared — the bytes that are signed and verified.
func (m Manifest) SigningBytes() ([]byte, error) {
	return codec.Marshal(m.signingView())
}

// Sign signs m with sk, setting Author and Signature. It returns a new
// Manifest; m is left untouched.
func Sign(m Manifest, sk jaxcrypto.SecretKey) (Manifest, error) {
	author := sk.Public()
	m.Author = &author
	m.Signature = nil

	bytes, err := m.SigningBytes()
	if err != nil {
		return Manifest{}, err
	}
	m.Signature = sk.Sign(bytes)
	return m, nil
}

// VerifySignature checks m.Signature against m.Author, bit-for-bit over
// the signing view.
func VerifySignature(m Manifest) bool {
	if m.Author == nil || len(m.Signature) == 0 {
		return false
	}
	bytes, err := m.SigningBytes()
	if err != nil {
		return false
	}
	return jaxcrypto.Verify(*m.Author, bytes, m.Signature)
}

// shareFor returns pub's entry in m's shares, whatever its role, and
// whether one exists.
func (m Manifest) shareFor(pub jaxcrypto.PublicKey) (Share, bool) {
	s, ok := m.Shares[pub.Hex()]
	return s, ok
}

// IsOwner reports whether pub holds the Owner role in m's shares.
func (m Manifest) IsOwner(pub jaxcrypto.PublicKey) bool {
	s, ok := m.shareFor(pub)
	return ok && s.Role == RoleOwner
}
