package node

import (
	"fmt"
	"strings"

	"github.com/jaxbucket/jaxbucket/pkg/blob"
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// Ref is a (link, secret) pair pointing at an encrypted Node — the shape
// used for both the tree root (Mount.entry_root) and every ChildRef.
type Ref struct {
	Link   codec.Link
	Secret jaxcrypto.Secret
}

// Load fetches, decrypts, and decodes the node addressed by ref.
func Load(ref Ref, blobs blob.Store) (Node, error) {
	sealed, ok, err := blobs.Get(ref.Link.Hash)
	if err != nil {
		return Node{}, fmt.Errorf("node: load get: %w", err)
	}
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrBlobMissing, ref.Link)
	}

	plaintext, err := ref.Secret.Open(sealed)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %s: %v", ErrIntegrityMismatch, ref.Link, err)
	}

	var n Node
	if err := codec.Unmarshal(plaintext, &n); err != nil {
		return Node{}, fmt.Errorf("node: decode %s: %w", ref.Link, err)
	}
	return n, nil
}

// Store encodes n as canonical DAG-CBOR, generates a fresh Secret,
// encrypts, and writes the sealed payload to blobs, returning a Ref that
// addresses it.
func Store(n Node, blobs blob.Store) (Ref, error) {
	plaintext, err := codec.Marshal(n)
	if err != nil {
		return Ref{}, fmt.Errorf("node: encode: %w", err)
	}

	secret, err := jaxcrypto.GenerateSecret()
	if err != nil {
		return Ref{}, fmt.Errorf("node: generate secret: %w", err)
	}

	sealed, err := secret.Seal(plaintext)
	if err != nil {
		return Ref{}, fmt.Errorf("node: seal: %w", err)
	}

	hash, err := blobs.Put(sealed)
	if err != nil {
		return Ref{}, fmt.Errorf("node: put: %w", err)
	}

	return Ref{Link: codec.Link{Hash: hash, Tag: codec.TagDagCBOR}, Secret: secret}, nil
}

// SplitPath normalizes an absolute, slash-separated path into its
// non-empty segments. "/" yields an empty slice.
func SplitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Walk descends root by path's segments, returning the ref and node of
// the addressed entry. An empty path (root) returns rootRef /
// rootNode directly.
func Walk(rootRef Ref, rootNode Node, path string, blobs blob.Store) (Ref, Node, error) {
	segments := SplitPath(path)

	ref, n := rootRef, rootNode
	for i, seg := range segments {
		if !n.IsDir() {
			return Ref{}, Node{}, fmt.Errorf("node: walk %q: %w", path, ErrNotADirectory)
		}
		child, ok := n.Children[seg]
		if !ok {
			return Ref{}, Node{}, fmt.Errorf("node: walk %q: %w", path, ErrNotFound)
		}
		childRef := Ref{Link: child.Link, Secret: child.Secret}
		childNode, err := Load(childRef, blobs)
		if err != nil {
			return Ref{}, Node{}, fmt.Errorf("node: walk %q at segment %d (%s): %w", path, i, seg, err)
		}
		ref, n = childRef, childNode
	}
	return ref, n, nil
}

// Update replaces the entry at path under root with newLeafNode,
// re-encoding and re-storing every directory on the spine from the
// touched leaf up to the root — each rewritten directory gets a fresh
// secret and link, which is then re-sealed into its own parent's
// ChildRef. Returns the new root ref.
//
// path must be non-empty; use WithChild directly to replace the root
// itself.
func Update(rootRef Ref, rootNode Node, path string, newLeaf Node, leafKind Kind, blobs blob.Store) (Ref, error) {
	leafRef, err := Store(newLeaf, blobs)
	if err != nil {
		return Ref{}, err
	}
	return Graft(rootRef, rootNode, path, ChildRef{
		Link: leafRef.Link, Secret: leafRef.Secret, KindHint: leafKind, Size: newLeaf.Size,
	}, blobs)
}

// Graft sets the entry at path under root to an already-stored child
// ref, re-storing every directory on the spine from the grafted leaf up
// to the root. Unlike Update, it never stores the leaf itself: the
// caller has already chosen its Link/Secret (e.g. because that same ref
// must also be recorded verbatim in a PathOpLog entry, and the two must
// address the identical stored blob).
func Graft(rootRef Ref, rootNode Node, path string, childRef ChildRef, blobs blob.Store) (Ref, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return Ref{}, fmt.Errorf("node: graft: empty path")
	}
	return graftSpine(rootRef, rootNode, segments, childRef, blobs)
}

func graftSpine(dirRef Ref, dirNode Node, segments []string, childRef ChildRef, blobs blob.Store) (Ref, error) {
	if !dirNode.IsDir() {
		return Ref{}, ErrNotADirectory
	}

	name := segments[0]
	rest := segments[1:]

	newChildRef := childRef
	if len(rest) != 0 {
		existing, ok := dirNode.Children[name]
		if !ok {
			return Ref{}, fmt.Errorf("node: graft: %w", ErrNotFound)
		}
		existingRef := Ref{Link: existing.Link, Secret: existing.Secret}
		existingNode, err := Load(existingRef, blobs)
		if err != nil {
			return Ref{}, err
		}
		ref, err := graftSpine(existingRef, existingNode, rest, childRef, blobs)
		if err != nil {
			return Ref{}, err
		}
		newChildRef = ChildRef{Link: ref.Link, Secret: ref.Secret, KindHint: KindDir}
	}

	updatedDir, err := dirNode.WithChild(name, newChildRef)
	if err != nil {
		return Ref{}, err
	}

	return Store(updatedDir, blobs)
}

// Remove deletes the entry at path under root, re-storing the spine from
// the parent directory up to the root.
func Remove(rootRef Ref, rootNode Node, path string, blobs blob.Store) (Ref, error) {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return Ref{}, fmt.Errorf("node: remove: empty path")
	}
	return removeSpine(rootRef, rootNode, segments, blobs)
}

func removeSpine(dirRef Ref, dirNode Node, segments []string, blobs blob.Store) (Ref, error) {
	if !dirNode.IsDir() {
		return Ref{}, ErrNotADirectory
	}

	name := segments[0]
	rest := segments[1:]

	var updatedDir Node
	var err error

	if len(rest) == 0 {
		if _, ok := dirNode.Children[name]; !ok {
			return Ref{}, fmt.Errorf("node: remove: %w", ErrNotFound)
		}
		updatedDir, err = dirNode.WithoutChild(name)
		if err != nil {
			return Ref{}, err
		}
	} else {
		existing, ok := dirNode.Children[name]
		if !ok {
			return Ref{}, fmt.Errorf("node: remove: %w", ErrNotFound)
		}
		childRef := Ref{Link: existing.Link, Secret: existing.Secret}
		childNode, err := Load(childRef, blobs)
		if err != nil {
			return Ref{}, err
		}
		newChildRef, err := removeSpine(childRef, childNode, rest, blobs)
		if err != nil {
			return Ref{}, err
		}
		updatedDir, err = dirNode.WithChild(name, ChildRef{
			Link:     newChildRef.Link,
			Secret:   newChildRef.Secret,
			KindHint: KindDir,
		})
		if err != nil {
			return Ref{}, err
		}
	}

	return Store(updatedDir, blobs)
}
