package manifest

import (
	"errors"
	"fmt"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// ErrNotAuthorized is returned when a key has no usable share for a
// manifest's current entry_secret.
var ErrNotAuthorized = errors.New("manifest: not authorized")

// ShareSpec is one participant's identity and role, the input shape for
// rebuilding a Shares table on every save (spec.md §4.6 step 4).
type ShareSpec struct {
	Pub  jaxcrypto.PublicKey
	Role Role
}

// SpecsFromShares reconstructs the []ShareSpec a Manifest's current
// Shares table implies, for callers that want to carry roles forward
// into a new save without re-deriving them by hand.
func SpecsFromShares(m Manifest) ([]ShareSpec, error) {
	specs := make([]ShareSpec, 0, len(m.Shares))
	for hexKey, share := range m.Shares {
		pub, err := jaxcrypto.PublicKeyFromHex(hexKey)
		if err != nil {
			return nil, fmt.Errorf("manifest: decode share key %q: %w", hexKey, err)
		}
		specs = append(specs, ShareSpec{Pub: pub, Role: share.Role})
	}
	return specs, nil
}

// WithShare appends spec to specs, or updates the role of an existing
// entry for the same public key (spec.md §4.7's share_with).
func WithShare(specs []ShareSpec, pub jaxcrypto.PublicKey, role Role) []ShareSpec {
	out := make([]ShareSpec, 0, len(specs)+1)
	found := false
	for _, s := range specs {
		if s.Pub.Equal(pub) {
			out = append(out, ShareSpec{Pub: pub, Role: role})
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, ShareSpec{Pub: pub, Role: role})
	}
	return out
}

// WithoutShare removes pub from specs.
func WithoutShare(specs []ShareSpec, pub jaxcrypto.PublicKey) []ShareSpec {
	out := make([]ShareSpec, 0, len(specs))
	for _, s := range specs {
		if !s.Pub.Equal(pub) {
			out = append(out, s)
		}
	}
	return out
}

// BuildShares re-encrypts entrySecret into a fresh Shares table: every
// Owner share gets a secret_share; Mirror shares only get one when
// publish is true (spec.md §4.6 step 4, §4.7's role contract).
func BuildShares(specs []ShareSpec, entrySecret jaxcrypto.Secret, publish bool) (map[string]Share, error) {
	shares := make(map[string]Share, len(specs))
	for _, s := range specs {
		var sealed *jaxcrypto.SealedShare
		if s.Role == RoleOwner || (s.Role == RoleMirror && publish) {
			ss, err := jaxcrypto.ShareSecret(s.Pub, entrySecret)
			if err != nil {
				return nil, fmt.Errorf("manifest: share secret with %s: %w", s.Pub.Hex(), err)
			}
			sealed = &ss
		}
		shares[s.Pub.Hex()] = Share{Role: s.Role, SecretShare: sealed}
	}
	return shares, nil
}

// ResolveEntrySecret recovers m's entry_secret for sk's holder: it looks
// up their share, requires a populated secret_share (absent for an
// unpublished Mirror share), and opens it via ECDH.
func ResolveEntrySecret(m Manifest, sk jaxcrypto.SecretKey) (jaxcrypto.Secret, error) {
	share, ok := m.shareFor(sk.Public())
	if !ok || share.SecretShare == nil {
		return jaxcrypto.Secret{}, ErrNotAuthorized
	}
	secret, err := jaxcrypto.OpenShare(sk, *share.SecretShare)
	if err != nil {
		return jaxcrypto.Secret{}, fmt.Errorf("manifest: open share: %w", err)
	}
	return secret, nil
}
