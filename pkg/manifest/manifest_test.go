package manifest_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
)

func mustIdentity(t *testing.T) jaxcrypto.SecretKey {
	t.Helper()
	sk, err := jaxcrypto.GenerateIdentity()
	require.NoError(t, err)
	return sk
}

func genesisFor(t *testing.T, sk jaxcrypto.SecretKey) manifest.Manifest {
	t.Helper()
	entrySecret, err := jaxcrypto.GenerateSecret()
	require.NoError(t, err)

	shares, err := manifest.BuildShares([]manifest.ShareSpec{
		{Pub: sk.Public(), Role: manifest.RoleOwner},
	}, entrySecret, false)
	require.NoError(t, err)

	m := manifest.Manifest{
		BucketID:    uuid.New(),
		Name:        "genesis",
		EntrySecret: entrySecret,
		Height:      0,
		Published:   false,
		Shares:      shares,
	}
	signed, err := manifest.Sign(m, sk)
	require.NoError(t, err)
	return signed
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk := mustIdentity(t)
	m := genesisFor(t, sk)
	require.True(t, manifest.VerifySignature(m))
}

func TestVerifyDetectsTampering(t *testing.T) {
	sk := mustIdentity(t)
	m := genesisFor(t, sk)

	m.Name = "tampered"
	require.False(t, manifest.VerifySignature(m))
}

func TestVerifyFailsWithoutSignature(t *testing.T) {
	m := manifest.Manifest{Name: "no sig"}
	require.False(t, manifest.VerifySignature(m))
}

func TestIsOwner(t *testing.T) {
	sk := mustIdentity(t)
	other := mustIdentity(t)
	m := genesisFor(t, sk)

	require.True(t, m.IsOwner(sk.Public()))
	require.False(t, m.IsOwner(other.Public()))
}

func TestResolveEntrySecretForOwner(t *testing.T) {
	sk := mustIdentity(t)
	m := genesisFor(t, sk)

	secret, err := manifest.ResolveEntrySecret(m, sk)
	require.NoError(t, err)
	require.Equal(t, m.EntrySecret, secret)
}

func TestResolveEntrySecretDeniedForUnpublishedMirror(t *testing.T) {
	owner := mustIdentity(t)
	mirror := mustIdentity(t)

	entrySecret, err := jaxcrypto.GenerateSecret()
	require.NoError(t, err)
	shares, err := manifest.BuildShares([]manifest.ShareSpec{
		{Pub: owner.Public(), Role: manifest.RoleOwner},
		{Pub: mirror.Public(), Role: manifest.RoleMirror},
	}, entrySecret, false)
	require.NoError(t, err)

	m := manifest.Manifest{EntrySecret: entrySecret, Shares: shares, Published: false}

	_, err = manifest.ResolveEntrySecret(m, mirror)
	require.ErrorIs(t, err, manifest.ErrNotAuthorized)
}

func TestResolveEntrySecretGrantedForPublishedMirror(t *testing.T) {
	owner := mustIdentity(t)
	mirror := mustIdentity(t)

	entrySecret, err := jaxcrypto.GenerateSecret()
	require.NoError(t, err)
	shares, err := manifest.BuildShares([]manifest.ShareSpec{
		{Pub: owner.Public(), Role: manifest.RoleOwner},
		{Pub: mirror.Public(), Role: manifest.RoleMirror},
	}, entrySecret, true)
	require.NoError(t, err)

	m := manifest.Manifest{EntrySecret: entrySecret, Shares: shares, Published: true}

	secret, err := manifest.ResolveEntrySecret(m, mirror)
	require.NoError(t, err)
	require.Equal(t, entrySecret, secret)
}
