package mount

import (
	"fmt"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
)

// ShareWith adds pub to the bucket's shares (or changes its role if
// already present) and saves, producing a new manifest that carries the
// updated shares table (spec.md §4.7's share_with).
//
// ShareWith does not itself check that sk is an Owner: that enforcement
// is structural, not local — a manifest authored by a non-Owner is
// rejected by every other peer's chain validation (spec.md §4.9), since
// authorization is checked against the *parent* manifest's shares, which
// this call cannot have altered.
func (m *Mount) ShareWith(pub jaxcrypto.PublicKey, role manifest.Role) (SaveResult, error) {
	m.mu.Lock()
	specs, err := manifest.SpecsFromShares(m.manifest)
	if err != nil {
		m.mu.Unlock()
		return SaveResult{}, fmt.Errorf("mount: share_with: %w", err)
	}
	specs = manifest.WithShare(specs, pub, role)
	m.manifest.Shares = placeholderShares(specs)
	publish := m.manifest.Published
	m.mu.Unlock()

	return m.Save(publish)
}

// RevokeShare removes pub from the bucket's shares and saves. Once
// saved, future Saves re-encrypt entry_secret only for the remaining
// shares, so a revoked peer's already-held copy of past secrets is not
// itself erased, but it gains no access to state saved afterward.
func (m *Mount) RevokeShare(pub jaxcrypto.PublicKey) (SaveResult, error) {
	m.mu.Lock()
	specs, err := manifest.SpecsFromShares(m.manifest)
	if err != nil {
		m.mu.Unlock()
		return SaveResult{}, fmt.Errorf("mount: revoke_share: %w", err)
	}
	specs = manifest.WithoutShare(specs, pub)
	m.manifest.Shares = placeholderShares(specs)
	publish := m.manifest.Published
	m.mu.Unlock()

	return m.Save(publish)
}

// placeholderShares carries specs' roles into m.manifest.Shares ahead of
// a Save: Save always re-derives entry_secret fresh and rebuilds every
// SecretShare from it via manifest.BuildShares, so only the (pub, role)
// pairs here need to survive until then.
func placeholderShares(specs []manifest.ShareSpec) map[string]manifest.Share {
	out := make(map[string]manifest.Share, len(specs))
	for _, s := range specs {
		out[s.Pub.Hex()] = manifest.Share{Role: s.Role}
	}
	return out
}
