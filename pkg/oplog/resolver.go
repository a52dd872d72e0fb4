package oplog

import (
	"fmt"
	"path"
	"strings"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
)

// ConflictKind classifies a merge conflict detected during replay
// (spec.md §4.5 step 3).
type ConflictKind uint8

const (
	ConflictAddAdd ConflictKind = iota
	ConflictMoveMoveDivergent
	ConflictCycle
)

func (k ConflictKind) String() string {
	switch k {
	case ConflictAddAdd:
		return "add-add"
	case ConflictMoveMoveDivergent:
		return "move-move-divergent"
	case ConflictCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// Conflict describes one losing side of a merge conflict, offered to a
// Resolver for disposition.
type Conflict struct {
	Kind ConflictKind

	// Path is the contested path: the shared Add path for AddAdd, the
	// loser's intended destination for MoveMoveDivergent, or the
	// rejected move's destination for Cycle.
	Path string

	LoserLink     codec.Link
	LoserSecret   jaxcrypto.Secret
	LoserKindHint node.Kind
	LoserSize     uint64
	LoserOp       OpEntry
}

// Action is a Resolver's disposition for a Conflict.
type Action uint8

const (
	// ActionDrop discards the losing side entirely.
	ActionDrop Action = iota
	// ActionKeepAs relocates the losing side to Resolution.NewPath.
	ActionKeepAs
	// ActionKeepBoth is shorthand for ActionKeepAs with a suffix the
	// resolver computes itself (see ConflictFile).
	ActionKeepBoth
)

// Resolution is a Resolver's verdict for one Conflict.
type Resolution struct {
	Action  Action
	NewPath string // populated for ActionKeepAs/ActionKeepBoth
}

// Resolver decides what happens to the losing side of a merge conflict.
type Resolver interface {
	Resolve(c Conflict) Resolution
}

// ConflictFile is the built-in resolver spec.md §4.5 names: every
// drop-or-overwrite becomes ActionKeepBoth, renaming the loser by
// inserting "@<hex of the first 8 bytes of its content hash>" before the
// file extension.
type ConflictFile struct{}

// Resolve implements Resolver.
func (ConflictFile) Resolve(c Conflict) Resolution {
	return Resolution{
		Action:  ActionKeepBoth,
		NewPath: SuffixPath(c.Path, c.LoserLink.Hash),
	}
}

// SuffixPath inserts "@<hex(hash[:8])>" before path's extension, the
// renaming scheme ConflictFile uses to keep both sides of a conflict.
func SuffixPath(p string, hash jaxcrypto.Hash) string {
	dir, base := path.Split(p)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	suffix := fmt.Sprintf("@%x", hash[:8])
	return dir + stem + suffix + ext
}
