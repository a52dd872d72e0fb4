package blob_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

func TestMemStorePutGetRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hello jaxbucket")},
		{"binary", bytes.Repeat([]byte{0xAB, 0xCD, 0x00, 0xFF}, 1024)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := blob.NewMemStore()

			h, err := s.Put(tc.data)
			require.NoError(t, err)

			got, ok, err := s.Get(h)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, tc.data, got)
		})
	}
}

func TestMemStorePutIsContentAddressedAndIdempotent(t *testing.T) {
	s := blob.NewMemStore()
	data := []byte("the same bytes, stored twice")

	h1, err := s.Put(data)
	require.NoError(t, err)
	h2, err := s.Put(data)
	require.NoError(t, err)

	require.Equal(t, h1, h2)
	require.Equal(t, 1, s.Len())
	require.Equal(t, jaxcrypto.SumHash(data), h1)
}

func TestMemStoreGetMissing(t *testing.T) {
	s := blob.NewMemStore()
	_, ok, err := s.Get(jaxcrypto.SumHash([]byte("never stored")))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStorePutStreamMatchesPut(t *testing.T) {
	s := blob.NewMemStore()
	data := []byte("streamed content")

	hStream, err := s.PutStream(bytes.NewReader(data))
	require.NoError(t, err)

	hDirect, err := s.Put(data)
	require.NoError(t, err)

	require.Equal(t, hDirect, hStream)
}

func TestMemStoreGetStreamReadsFully(t *testing.T) {
	s := blob.NewMemStore()
	data := []byte("readable via stream")
	h, err := s.Put(data)
	require.NoError(t, err)

	r, ok, err := s.GetStream(h)
	require.NoError(t, err)
	require.True(t, ok)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestMemStorePutRejectsOversized(t *testing.T) {
	s := blob.NewMemStore().WithMaxSize(4)
	_, err := s.Put([]byte("too long"))
	require.ErrorIs(t, err, blob.ErrTooLarge)
}

func TestMemStoreDelete(t *testing.T) {
	s := blob.NewMemStore()
	h, err := s.Put([]byte("to be deleted"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(h))

	_, ok, err := s.Get(h)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStoreHas(t *testing.T) {
	s := blob.NewMemStore()
	h, err := s.Put([]byte("present"))
	require.NoError(t, err)

	ok, err := s.Has(h)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Has(jaxcrypto.SumHash([]byte("absent")))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemStoreGetReturnsIndependentCopy(t *testing.T) {
	s := blob.NewMemStore()
	data := []byte("mutate me not")
	h, err := s.Put(data)
	require.NoError(t, err)

	got, ok, err := s.Get(h)
	require.NoError(t, err)
	require.True(t, ok)

	got[0] = 'X'

	got2, _, err := s.Get(h)
	require.NoError(t, err)
	require.Equal(t, data, got2)
}
