package oplog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/node"
)

// trieNode is an intermediate directory while building a tree from a
// flattened path -> Entry map.
type trieNode struct {
	leaf     *Entry // non-nil for a file (or an explicit empty dir) leaf
	children map[string]*trieNode
}

func newTrieNode() *trieNode {
	return &trieNode{children: map[string]*trieNode{}}
}

// BuildTree assembles the directory tree implied by state (the output of
// Replay) and stores every directory node, returning the new root Ref.
// Leaf entries are placed as-is: their Link/Secret already address an
// existing stored Node (spec.md §3.4's Add carries a fully-formed
// node reference, not raw content), so only directories are freshly
// encoded and stored here.
func BuildTree(state map[string]Entry, blobs blob.Store) (node.Ref, error) {
	root := newTrieNode()

	paths := make([]string, 0, len(state))
	for p := range state {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		segments := node.SplitPath(p)
		if len(segments) == 0 {
			continue
		}
		cur := root
		for _, seg := range segments[:len(segments)-1] {
			next, ok := cur.children[seg]
			if !ok {
				next = newTrieNode()
				cur.children[seg] = next
			}
			cur = next
		}
		last := segments[len(segments)-1]
		entry := state[p]
		if entry.KindHint == node.KindDir {
			dirNode, ok := cur.children[last]
			if !ok {
				dirNode = newTrieNode()
				cur.children[last] = dirNode
			}
			e := entry
			dirNode.leaf = &e
		} else {
			e := entry
			cur.children[last] = &trieNode{leaf: &e, children: map[string]*trieNode{}}
		}
	}

	return storeTrie(root, blobs)
}

func storeTrie(t *trieNode, blobs blob.Store) (node.Ref, error) {
	if len(t.children) == 0 && t.leaf != nil {
		// Explicit empty directory or a file leaf: no descendants to
		// fold in, so its own stored ref is authoritative.
		return node.Ref{Link: t.leaf.Link, Secret: t.leaf.Secret}, nil
	}
	if len(t.children) == 0 {
		return node.Store(node.NewDir(), blobs)
	}

	dir := node.NewDir()
	names := make([]string, 0, len(t.children))
	for name := range t.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		child := t.children[name]
		if len(child.children) == 0 && child.leaf != nil {
			ref := node.Ref{Link: child.leaf.Link, Secret: child.leaf.Secret}
			var err error
			dir, err = dir.WithChild(name, node.ChildRef{
				Link: ref.Link, Secret: ref.Secret,
				KindHint: child.leaf.KindHint, Size: child.leaf.Size,
			})
			if err != nil {
				return node.Ref{}, fmt.Errorf("oplog: build tree: %w", err)
			}
			continue
		}

		childRef, err := storeTrie(child, blobs)
		if err != nil {
			return node.Ref{}, err
		}
		dir, err = dir.WithChild(name, node.ChildRef{
			Link: childRef.Link, Secret: childRef.Secret, KindHint: node.KindDir,
		})
		if err != nil {
			return node.Ref{}, fmt.Errorf("oplog: build tree: %w", err)
		}
	}

	return node.Store(dir, blobs)
}

// FlattenTree walks an existing node tree into the same path -> Entry
// shape Replay produces, the inverse of BuildTree. Only its test calls
// it; Mount and the sync engine do not use it.
func FlattenTree(rootRef node.Ref, root node.Node, blobs blob.Store) (map[string]Entry, error) {
	state := map[string]Entry{}
	if err := flatten("", rootRef, root, blobs, state); err != nil {
		return nil, err
	}
	return state, nil
}

func flatten(prefix string, ref node.Ref, n node.Node, blobs blob.Store, out map[string]Entry) error {
	if n.IsFile() {
		return nil
	}
	for name, child := range n.Children {
		p := strings.TrimPrefix(prefix+"/"+name, "//")
		out[p] = Entry{Link: child.Link, Secret: child.Secret, Size: child.Size, KindHint: child.KindHint}
		if child.KindHint == node.KindDir {
			childRef := node.Ref{Link: child.Link, Secret: child.Secret}
			childNode, err := node.Load(childRef, blobs)
			if err != nil {
				return err
			}
			if err := flatten(p, childRef, childNode, blobs, out); err != nil {
				return err
			}
		}
	}
	return nil
}
