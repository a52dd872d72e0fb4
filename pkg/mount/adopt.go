package mount

import (
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/oplog"
)

// ReplaceWith overwrites m's working tree, op log, and pins with
// other's, and takes other's head link and height so m's next Save
// extends other's head; m's bucketLog and signing key stay as they
// are. A sync engine uses this in spec.md §4.8 step
// 6's first branch: when m has no unsaved local work, there is nothing
// to merge, so adopting other's resolved state wholesale is correct
// and cheaper than running it through MergeFrom's CRDT replay.
func (m *Mount) ReplaceWith(other *Mount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	m.entryRoot = other.entryRoot
	m.entryNode = other.entryNode
	m.opsLog = oplog.FromEntries(other.opsLog.Entries())

	pins := make(map[jaxcrypto.Hash]struct{}, len(other.pins))
	for h := range other.pins {
		pins[h] = struct{}{}
	}
	m.pins = pins

	m.manifest.Shares = other.manifest.Shares
	m.manifest.Name = other.manifest.Name
	m.headLink = other.headLink
	m.manifest.Height = other.manifest.Height
}

// AdoptShares copies other's current share table and bucket name onto
// m, along with other's head link and height so m's next Save extends
// other's head. A sync engine calls this after MergeFrom in the non-empty-local-
// ops branch of spec.md §4.8 step 6: the tree and op log merge through
// the CRDT, but a remote's authorization changes (new grants, role
// promotions, revocations of a third party) are not ops-log entries at
// all — they only ever live in a manifest's shares table — so without
// this they would be silently discarded in favor of m's stale table on
// the next save.
func (m *Mount) AdoptShares(other *Mount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	other.mu.RLock()
	defer other.mu.RUnlock()
	m.manifest.Shares = other.manifest.Shares
	m.manifest.Name = other.manifest.Name
	m.headLink = other.headLink
	m.manifest.Height = other.manifest.Height
}
