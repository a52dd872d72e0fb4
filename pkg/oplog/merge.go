package oplog

import (
	"strings"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
)

// Entry is one materialized path in a replayed tree: the ChildRef that
// belongs at that path plus the op that currently owns it, used both to
// assemble the final directory tree and to detect further conflicts.
type Entry struct {
	Link     codec.Link
	Secret   jaxcrypto.Secret
	Size     uint64
	KindHint node.Kind
	Owner    OpEntry
}

// Replayed is the result of replaying a merged op log against an empty
// tree: the final flattened path -> Entry state, plus every conflict
// found and the synthesized Add entries a resolver's ActionKeepBoth/
// ActionKeepAs produced (these must be appended to the merged log for
// causal consistency with future merges).
type Replayed struct {
	State      map[string]Entry
	Conflicts  []Conflict
	Synthesized []OpEntry
}

// Replay applies entries (already unioned and sorted by (lamport,
// author) — see Union/Sorted) against an empty tree, per spec.md §4.5.
//
// Cycle detection is scoped to the single-hop case spec.md's wording
// names directly ("a directory moved under its own descendant"): a Move
// whose destination equals or nests under its own source is rejected
// outright. Chains of several Moves that only create a cycle in
// combination are not detected; see DESIGN.md.
func Replay(entries []OpEntry, resolver Resolver) Replayed {
	r := &replayer{
		state:          map[string]Entry{},
		lastKnown:      map[string]Entry{},
		lastMoveBySrc:  map[string]OpEntry{},
		resolver:       resolver,
	}

	queue := append([]OpEntry(nil), entries...)
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		var synth *OpEntry
		switch e.Kind {
		case KindAdd:
			synth = r.applyAdd(e)
		case KindRemove:
			r.applyRemove(e)
		case KindMove:
			synth = r.applyMove(e)
		}
		if synth != nil {
			r.synthesized = append(r.synthesized, *synth)
			queue = append(queue, *synth)
		}
	}

	return Replayed{State: r.state, Conflicts: r.conflicts, Synthesized: r.synthesized}
}

type replayer struct {
	state         map[string]Entry
	lastKnown     map[string]Entry // path -> last entry ever placed there, survives Remove
	lastMoveBySrc map[string]OpEntry
	resolver      Resolver
	conflicts     []Conflict
	synthesized   []OpEntry
}

func (r *replayer) applyAdd(e OpEntry) *OpEntry {
	entry := Entry{Link: e.Link, Secret: e.Secret, Size: e.Size, KindHint: e.ChildKind, Owner: e}
	loser, occupied := r.state[e.Path]

	r.state[e.Path] = entry
	r.lastKnown[e.Path] = entry

	if !occupied {
		return nil
	}

	conflict := Conflict{
		Kind:          ConflictAddAdd,
		Path:          e.Path,
		LoserLink:     loser.Link,
		LoserSecret:   loser.Secret,
		LoserKindHint: loser.KindHint,
		LoserSize:     loser.Size,
		LoserOp:       loser.Owner,
	}
	r.conflicts = append(r.conflicts, conflict)
	return r.disposeLoser(conflict, loser)
}

// applyRemove implements spec.md's move-remove rule: remove wins if
// strictly later than a move of the same path, in which case it chases
// the move to its destination (single-hop, matching the simplification
// Replay's doc comment already makes for cycle detection) rather than
// deleting at a source path the content no longer occupies. A remove
// earlier than a later move is not special-cased here at all: lastKnown
// already survives Remove so that later move resurrects the content,
// which is spec's "otherwise move wins".
func (r *replayer) applyRemove(e OpEntry) {
	target := e.Path
	if moved, ok := r.lastMoveBySrc[e.Path]; ok {
		if e.Lamport <= moved.Lamport {
			return // not strictly later than the move: the move wins, the remove is a no-op
		}
		target = moved.Dst
		delete(r.lastKnown, e.Path)
		delete(r.lastKnown, target)
	}
	delete(r.state, target)
	r.removeSubtree(target)
}

func (r *replayer) removeSubtree(p string) {
	prefix := p + "/"
	for path := range r.state {
		if strings.HasPrefix(path, prefix) {
			delete(r.state, path)
		}
	}
}

func (r *replayer) applyMove(e OpEntry) *OpEntry {
	content, had := r.lastKnown[e.Path]
	if !had {
		return nil // src never existed (or was never observed yet); nothing to move
	}

	if e.Dst == e.Path || strings.HasPrefix(e.Dst, e.Path+"/") {
		r.conflicts = append(r.conflicts, Conflict{
			Kind:          ConflictCycle,
			Path:          e.Dst,
			LoserLink:     content.Link,
			LoserSecret:   content.Secret,
			LoserKindHint: content.KindHint,
			LoserSize:     content.Size,
			LoserOp:       e,
		})
		return nil
	}

	var synth *OpEntry
	if prevMove, ok := r.lastMoveBySrc[e.Path]; ok && prevMove.Dst != e.Dst {
		if loser, stillThere := r.state[prevMove.Dst]; stillThere {
			delete(r.state, prevMove.Dst)
			r.removeSubtree(prevMove.Dst)
			conflict := Conflict{
				Kind:          ConflictMoveMoveDivergent,
				Path:          prevMove.Dst,
				LoserLink:     loser.Link,
				LoserSecret:   loser.Secret,
				LoserKindHint: loser.KindHint,
				LoserSize:     loser.Size,
				LoserOp:       prevMove,
			}
			r.conflicts = append(r.conflicts, conflict)
			synth = r.disposeLoser(conflict, loser)
		}
	}
	r.lastMoveBySrc[e.Path] = e

	r.relocate(e.Path, e.Dst, content)
	return synth
}

// relocate moves content (and, if it is a directory, every descendant
// currently live under src) from src to dst in both state and
// lastKnown.
func (r *replayer) relocate(src, dst string, content Entry) {
	delete(r.state, src)
	r.state[dst] = content
	r.lastKnown[dst] = content

	if content.KindHint != node.KindDir {
		return
	}

	prefix := src + "/"
	for path, entry := range r.state {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		rest := strings.TrimPrefix(path, prefix)
		newPath := dst + "/" + rest
		delete(r.state, path)
		r.state[newPath] = entry
		r.lastKnown[newPath] = entry
	}
}

// disposeLoser applies a resolver's verdict for a conflict's losing
// side, returning a synthesized Add op to queue for replay when the
// action relocates it (KeepAs/KeepBoth).
func (r *replayer) disposeLoser(c Conflict, loser Entry) *OpEntry {
	resolution := r.resolver.Resolve(c)
	if resolution.Action == ActionDrop {
		return nil
	}

	newPath := resolution.NewPath
	if newPath == "" {
		newPath = SuffixPath(c.Path, c.LoserLink.Hash)
	}

	synthLamport := c.LoserOp.Lamport
	return &OpEntry{
		OpID:      c.LoserOp.OpID,
		Author:    c.LoserOp.Author,
		Lamport:   synthLamport,
		WallTime:  c.LoserOp.WallTime,
		Kind:      KindAdd,
		Path:      newPath,
		Link:      loser.Link,
		Secret:    loser.Secret,
		Size:      loser.Size,
		ChildKind: loser.KindHint,
	}
}
