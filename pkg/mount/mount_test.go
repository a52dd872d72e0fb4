package mount_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/manifest"
	"github.com/jaxbucket/jaxbucket/pkg/mount"
)

func mustSK(t *testing.T) jaxcrypto.SecretKey {
	t.Helper()
	sk, err := jaxcrypto.GenerateIdentity()
	require.NoError(t, err)
	return sk
}

func freshMount(t *testing.T) (*mount.Mount, blob.Store, manifest.BucketLog, jaxcrypto.SecretKey) {
	t.Helper()
	store := blob.NewMemStore()
	bucketLog := manifest.NewMemBucketLog()
	sk := mustSK(t)

	m, err := mount.Init(uuid.New(), "test-bucket", sk, store, bucketLog, nil)
	require.NoError(t, err)
	return m, store, bucketLog, sk
}

func TestInitEmptyMount(t *testing.T) {
	m, _, _, _ := freshMount(t)

	entries, err := m.Ls("/", false)
	require.NoError(t, err)
	require.Empty(t, entries)
	require.False(t, m.IsPublished())
}

func TestAddAndCatRoundTrip(t *testing.T) {
	m, _, _, _ := freshMount(t)

	require.NoError(t, m.Add("/hello.txt", []byte("hello world")))

	data, err := m.Cat("/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))

	entries, err := m.Ls("/", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "hello.txt", entries[0].Name)
}

func TestAddAutoCreatesIntermediateDirs(t *testing.T) {
	m, _, _, _ := freshMount(t)

	require.NoError(t, m.Add("/a/b/c.txt", []byte("deep")))

	data, err := m.Cat("/a/b/c.txt")
	require.NoError(t, err)
	require.Equal(t, "deep", string(data))

	top, err := m.Ls("/", false)
	require.NoError(t, err)
	require.Len(t, top, 1)
	require.Equal(t, "a", top[0].Name)

	deep, err := m.Ls("/", true)
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range deep {
		names[e.Name] = true
	}
	require.True(t, names["a"])
	require.True(t, names["a/b"])
	require.True(t, names["a/b/c.txt"])
}

func TestAddOverDirPathIsAlreadyExists(t *testing.T) {
	m, _, _, _ := freshMount(t)
	require.NoError(t, m.Mkdir("/docs"))

	err := m.Add("/docs", []byte("x"))
	require.ErrorIs(t, err, mount.ErrAlreadyExists)
}

func TestMkdirErrors(t *testing.T) {
	m, _, _, _ := freshMount(t)

	require.NoError(t, m.Mkdir("/docs"))
	require.ErrorIs(t, m.Mkdir("/docs"), mount.ErrAlreadyExists)
	require.ErrorIs(t, m.Mkdir("/missing/parent"), mount.ErrParentMissing)
}

func TestCatErrors(t *testing.T) {
	m, _, _, _ := freshMount(t)
	require.NoError(t, m.Mkdir("/docs"))

	_, err := m.Cat("/nope.txt")
	require.ErrorIs(t, err, mount.ErrNotFound)

	_, err = m.Cat("/docs")
	require.ErrorIs(t, err, mount.ErrNotAFile)
}

func TestRmRemovesRecursively(t *testing.T) {
	m, _, _, _ := freshMount(t)
	require.NoError(t, m.Add("/a/b/c.txt", []byte("x")))

	require.NoError(t, m.Rm("/a"))

	_, err := m.Cat("/a/b/c.txt")
	require.ErrorIs(t, err, mount.ErrNotFound)

	entries, err := m.Ls("/", false)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRmNotFound(t *testing.T) {
	m, _, _, _ := freshMount(t)
	require.ErrorIs(t, m.Rm("/nope"), mount.ErrNotFound)
}

func TestMvPreservesContentAndRejectsDstExists(t *testing.T) {
	m, _, _, _ := freshMount(t)
	require.NoError(t, m.Add("/a.txt", []byte("payload")))
	require.NoError(t, m.Add("/b.txt", []byte("other")))

	require.NoError(t, m.Mv("/a.txt", "/moved.txt"))

	data, err := m.Cat("/moved.txt")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	_, err = m.Cat("/a.txt")
	require.ErrorIs(t, err, mount.ErrNotFound)

	err = m.Mv("/b.txt", "/moved.txt")
	require.ErrorIs(t, err, mount.ErrDstExists)

	err = m.Mv("/nope.txt", "/somewhere.txt")
	require.ErrorIs(t, err, mount.ErrNotFound)
}

func TestSaveIsMonotoneAndVerifiable(t *testing.T) {
	m, store, bucketLog, sk := freshMount(t)
	require.NoError(t, m.Add("/a.txt", []byte("1")))

	first, err := m.Save(false)
	require.NoError(t, err)
	require.Equal(t, uint64(0), first.Height)

	require.NoError(t, m.Add("/b.txt", []byte("2")))
	second, err := m.Save(false)
	require.NoError(t, err)
	require.Equal(t, uint64(1), second.Height)
	require.Equal(t, first.Link, second.Previous)

	head, ok, err := bucketLog.Head(m.BucketID())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second.Link, head)

	got, err := manifest.Get(second.Link, store)
	require.NoError(t, err)
	require.True(t, manifest.VerifySignature(got))
	require.True(t, got.IsOwner(sk.Public()))
}

func TestSavePublishGrantsMirrorAccess(t *testing.T) {
	m, store, bucketLog, _ := freshMount(t)
	mirror := mustSK(t)

	res, err := m.ShareWith(mirror.Public(), manifest.RoleMirror)
	require.NoError(t, err)

	_, err = mount.Load(res.Link, mirror, store, bucketLog, nil)
	require.ErrorIs(t, err, manifest.ErrNotAuthorized)

	published, err := m.Save(true)
	require.NoError(t, err)

	mirrorMount, err := mount.Load(published.Link, mirror, store, bucketLog, nil)
	require.NoError(t, err)
	require.True(t, mirrorMount.IsPublished())
}

func TestLoadRejectsUnauthorizedKey(t *testing.T) {
	m, store, bucketLog, _ := freshMount(t)
	require.NoError(t, m.Add("/a.txt", []byte("x")))
	saved, err := m.Save(false)
	require.NoError(t, err)

	stranger := mustSK(t)
	_, err = mount.Load(saved.Link, stranger, store, bucketLog, nil)
	require.ErrorIs(t, err, manifest.ErrNotAuthorized)
}

func TestLoadRoundTripsMutableState(t *testing.T) {
	m, store, bucketLog, sk := freshMount(t)
	require.NoError(t, m.Add("/a/b.txt", []byte("payload")))
	require.NoError(t, m.Mkdir("/empty"))
	saved, err := m.Save(false)
	require.NoError(t, err)

	reloaded, err := mount.Load(saved.Link, sk, store, bucketLog, nil)
	require.NoError(t, err)

	data, err := reloaded.Cat("/a/b.txt")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	entries, err := reloaded.Ls("/", false)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}
