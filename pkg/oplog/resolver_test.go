package oplog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
)

func TestSuffixPathInsertsBeforeExtension(t *testing.T) {
	h := jaxcrypto.SumHash([]byte("loser content"))
	got := oplog.SuffixPath("/docs/report.txt", h)
	require.Regexp(t, `^/docs/report@[0-9a-f]{16}\.txt$`, got)
}

func TestSuffixPathNoExtension(t *testing.T) {
	h := jaxcrypto.SumHash([]byte("loser"))
	got := oplog.SuffixPath("/docs/README", h)
	require.Regexp(t, `^/docs/README@[0-9a-f]{16}$`, got)
}

func TestConflictFileAlwaysKeepsBoth(t *testing.T) {
	res := oplog.ConflictFile{}.Resolve(oplog.Conflict{
		Kind:      oplog.ConflictAddAdd,
		Path:      "/a.txt",
		LoserLink: fakeLink(1),
	})
	require.Equal(t, oplog.ActionKeepBoth, res.Action)
	require.NotEmpty(t, res.NewPath)
}
