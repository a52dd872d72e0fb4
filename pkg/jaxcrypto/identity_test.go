package jaxcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	sk, err := GenerateIdentity()
	require.NoError(t, err)

	msg := []byte("manifest bytes")
	sig := sk.Sign(msg)
	require.True(t, Verify(sk.Public(), msg, sig))

	for i := range sig {
		tampered := append([]byte(nil), sig...)
		tampered[i] ^= 0x01
		require.False(t, Verify(sk.Public(), msg, tampered))
	}

	tamperedMsg := append([]byte(nil), msg...)
	tamperedMsg[0] ^= 0x01
	require.False(t, Verify(sk.Public(), tamperedMsg, sig))
}

func TestShareSecretRoundTrip(t *testing.T) {
	owner, err := GenerateIdentity()
	require.NoError(t, err)
	mirror, err := GenerateIdentity()
	require.NoError(t, err)

	secret, err := GenerateSecret()
	require.NoError(t, err)

	sealed, err := ShareSecret(mirror.Public(), secret)
	require.NoError(t, err)

	got, err := OpenShare(mirror, sealed)
	require.NoError(t, err)
	require.Equal(t, secret, got)

	// The owner's own key must not be able to open a share sealed for mirror.
	_, err = OpenShare(owner, sealed)
	require.Error(t, err)
}
