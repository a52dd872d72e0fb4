package oplog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
)

func mustIdentity(t *testing.T) jaxcrypto.PublicKey {
	t.Helper()
	sk, err := jaxcrypto.GenerateIdentity()
	require.NoError(t, err)
	return sk.Public()
}

func fakeLink(b byte) codec.Link {
	var h jaxcrypto.Hash
	h[0] = b
	return codec.Link{Hash: h, Tag: codec.TagDagCBOR}
}

func TestAddAddConflictKeepsBothViaConflictFile(t *testing.T) {
	alice := mustIdentity(t)
	bob := mustIdentity(t)

	aliceLog := oplog.New()
	e1 := aliceLog.AppendAdd(alice, "/report.txt", fakeLink(1), jaxcrypto.Secret{}, 10, node.KindFile)

	bobLog := oplog.New()
	bobLog.Observe(e1.Lamport + 5) // unambiguously later than alice's add
	e2 := bobLog.AppendAdd(bob, "/report.txt", fakeLink(2), jaxcrypto.Secret{}, 20, node.KindFile)

	merged, replayed := oplog.MergeFrom(aliceLog.Entries(), bobLog.Entries(), oplog.ConflictFile{})

	require.Len(t, replayed.Conflicts, 1)
	require.Equal(t, oplog.ConflictAddAdd, replayed.Conflicts[0].Kind)

	// Winner (bob's later add) occupies the original path.
	winner, ok := replayed.State["/report.txt"]
	require.True(t, ok)
	require.Equal(t, e2.Link, winner.Link)

	// Loser (alice's earlier add) was kept at a suffixed path.
	var found bool
	for p, e := range replayed.State {
		if p != "/report.txt" && e.Link == e1.Link {
			found = true
		}
	}
	require.True(t, found, "loser content must survive at a renamed path")
	require.Len(t, merged, 3) // 2 original + 1 synthesized KeepBoth add
}

func TestMoveMoveDivergentKeepsBothDestinations(t *testing.T) {
	alice := mustIdentity(t)
	bob := mustIdentity(t)

	log := oplog.New()
	addSrc := log.AppendAdd(alice, "/src.txt", fakeLink(9), jaxcrypto.Secret{}, 1, node.KindFile)

	aliceMove := oplog.New()
	aliceMove.Observe(addSrc.Lamport)
	m1 := aliceMove.AppendMove(alice, "/src.txt", "/alice-dst.txt")

	bobMove := oplog.New()
	bobMove.Observe(m1.Lamport + 3)
	m2 := bobMove.AppendMove(bob, "/src.txt", "/bob-dst.txt")

	entries := oplog.Union([]oplog.OpEntry{addSrc, m1}, []oplog.OpEntry{m2})
	replayed := oplog.Replay(entries, oplog.ConflictFile{})

	require.Len(t, replayed.Conflicts, 1)
	require.Equal(t, oplog.ConflictMoveMoveDivergent, replayed.Conflicts[0].Kind)

	_, bobHasIt := replayed.State["/bob-dst.txt"]
	require.True(t, bobHasIt, "later move wins at its destination")
}

func TestMoveRemoveLaterRemoveWins(t *testing.T) {
	alice := mustIdentity(t)

	addLog := oplog.New()
	add := addLog.AppendAdd(alice, "/f.txt", fakeLink(3), jaxcrypto.Secret{}, 1, node.KindFile)

	moveLog := oplog.New()
	moveLog.Observe(add.Lamport)
	mv := moveLog.AppendMove(alice, "/f.txt", "/moved.txt")

	removeLog := oplog.New()
	removeLog.Observe(mv.Lamport + 3)
	rm := removeLog.AppendRemove(alice, "/f.txt")

	entries := oplog.Union([]oplog.OpEntry{add, mv}, []oplog.OpEntry{rm})
	replayed := oplog.Replay(entries, oplog.ConflictFile{})

	_, stillMoved := replayed.State["/moved.txt"]
	require.False(t, stillMoved, "a later remove must win over an earlier move")
}

func TestMoveRemoveLaterMoveWins(t *testing.T) {
	alice := mustIdentity(t)

	addLog := oplog.New()
	add := addLog.AppendAdd(alice, "/f.txt", fakeLink(3), jaxcrypto.Secret{}, 1, node.KindFile)

	removeLog := oplog.New()
	removeLog.Observe(add.Lamport)
	rm := removeLog.AppendRemove(alice, "/f.txt")

	moveLog := oplog.New()
	moveLog.Observe(rm.Lamport + 3)
	mv := moveLog.AppendMove(alice, "/f.txt", "/moved.txt")

	entries := oplog.Union([]oplog.OpEntry{add, rm}, []oplog.OpEntry{mv})
	replayed := oplog.Replay(entries, oplog.ConflictFile{})

	_, moved := replayed.State["/moved.txt"]
	require.True(t, moved, "a later move must win over an earlier remove")
}

func TestCycleRejectsMoveUnderOwnDescendant(t *testing.T) {
	alice := mustIdentity(t)

	log := oplog.New()
	mkdir := log.AppendAdd(alice, "/parent", codec.Link{}, jaxcrypto.Secret{}, 0, node.KindDir)
	_ = log.AppendAdd(alice, "/parent/child", fakeLink(7), jaxcrypto.Secret{}, 1, node.KindFile)
	cyclic := log.AppendMove(alice, "/parent", "/parent/child/under-itself")

	replayed := oplog.Replay(log.Entries(), oplog.ConflictFile{})

	require.Len(t, replayed.Conflicts, 1)
	require.Equal(t, oplog.ConflictCycle, replayed.Conflicts[0].Kind)

	// The directory must remain where it was; the cyclic move is
	// rejected outright.
	_, stillAtParent := replayed.State["/parent"]
	require.True(t, stillAtParent)
	_, movedUnderSelf := replayed.State["/parent/child/under-itself"]
	require.False(t, movedUnderSelf)

	_ = mkdir
	_ = cyclic
}

func TestMergeFromIsDeterministicRegardlessOfUnionOrder(t *testing.T) {
	alice := mustIdentity(t)
	bob := mustIdentity(t)

	localLog := oplog.New()
	a1 := localLog.AppendAdd(alice, "/x.txt", fakeLink(1), jaxcrypto.Secret{}, 1, node.KindFile)

	remoteLog := oplog.New()
	remoteLog.Observe(a1.Lamport + 2)
	b1 := remoteLog.AppendAdd(bob, "/y.txt", fakeLink(2), jaxcrypto.Secret{}, 2, node.KindFile)

	merged1, replayed1 := oplog.MergeFrom([]oplog.OpEntry{a1}, []oplog.OpEntry{b1}, oplog.ConflictFile{})
	merged2, replayed2 := oplog.MergeFrom([]oplog.OpEntry{b1}, []oplog.OpEntry{a1}, oplog.ConflictFile{})

	require.Equal(t, merged1, merged2)
	require.Equal(t, replayed1.State, replayed2.State)
}
