package oplog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
)

func TestAppendAssignsMonotonicLamport(t *testing.T) {
	alice := mustIdentity(t)
	log := oplog.New()

	e1 := log.AppendAdd(alice, "/a", fakeLink(1), jaxcrypto.Secret{}, 1, node.KindFile)
	e2 := log.AppendAdd(alice, "/b", fakeLink(2), jaxcrypto.Secret{}, 1, node.KindFile)
	e3 := log.AppendRemove(alice, "/a")

	require.Less(t, e1.Lamport, e2.Lamport)
	require.Less(t, e2.Lamport, e3.Lamport)
	require.Equal(t, 3, log.Len())
}

func TestSortedOrdersByLamportThenAuthor(t *testing.T) {
	alice := mustIdentity(t)
	bob := mustIdentity(t)

	low := oplog.OpEntry{Lamport: 1, Author: alice, Kind: oplog.KindAdd, Path: "/low"}
	high := oplog.OpEntry{Lamport: 5, Author: bob, Kind: oplog.KindAdd, Path: "/high"}

	sorted := oplog.Sorted([]oplog.OpEntry{high, low})
	require.Equal(t, "/low", sorted[0].Path)
	require.Equal(t, "/high", sorted[1].Path)
}

func TestUnionIsOrderIndependent(t *testing.T) {
	alice := mustIdentity(t)
	a := oplog.OpEntry{Lamport: 1, Author: alice, Kind: oplog.KindAdd, Path: "/a"}
	b := oplog.OpEntry{Lamport: 2, Author: alice, Kind: oplog.KindAdd, Path: "/b"}

	u1 := oplog.Union([]oplog.OpEntry{a}, []oplog.OpEntry{b})
	u2 := oplog.Union([]oplog.OpEntry{b}, []oplog.OpEntry{a})
	require.Equal(t, u1, u2)
}

func TestFromEntriesRestoresClock(t *testing.T) {
	alice := mustIdentity(t)
	original := oplog.New()
	e1 := original.AppendAdd(alice, "/a", fakeLink(1), jaxcrypto.Secret{}, 1, node.KindFile)

	restored := oplog.FromEntries(original.Entries())
	e2 := restored.AppendAdd(alice, "/b", fakeLink(2), jaxcrypto.Secret{}, 1, node.KindFile)

	require.Greater(t, e2.Lamport, e1.Lamport)
}
