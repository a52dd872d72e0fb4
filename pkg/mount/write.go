package mount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
)

func splitParent(path string) (parent string, name string, ok bool) {
	segments := node.SplitPath(path)
	if len(segments) == 0 {
		return "", "", false
	}
	return strings.Join(segments[:len(segments)-1], "/"), segments[len(segments)-1], true
}

// Add writes data at path, encrypting and content-addressing it,
// grafting the new file leaf into the tree, and recording an Add op.
// Intermediate directories are created implicitly (spec.md §4.4's
// auto-mkdir policy), each recorded as its own Add(dir) op.
func (m *Mount) Add(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, name, ok := splitParent(path)
	if !ok {
		return fmt.Errorf("mount: add %q: %w", path, ErrAlreadyExists)
	}

	if err := m.ensureDir(parent); err != nil {
		return fmt.Errorf("mount: add %q: %w", path, err)
	}

	_, parentNode, err := node.Walk(m.entryRoot, m.entryNode, parent, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: add %q: %w", path, mapNodeErr(err))
	}
	if existing, exists := parentNode.Children[name]; exists && existing.KindHint == node.KindDir {
		return fmt.Errorf("mount: add %q: %w", path, ErrAlreadyExists)
	}

	contentSecret, err := jaxcrypto.GenerateSecret()
	if err != nil {
		return fmt.Errorf("mount: add %q: %w", path, err)
	}
	sealed, err := contentSecret.Seal(data)
	if err != nil {
		return fmt.Errorf("mount: add %q: %w", path, err)
	}
	contentHash, err := m.blobs.Put(sealed)
	if err != nil {
		return fmt.Errorf("mount: add %q: %w: %v", path, ErrStoreFailed, err)
	}

	contentLink := codec.Link{Hash: contentHash, Tag: codec.TagRaw}
	fileNode := node.NewFile(contentLink, contentSecret, uint64(len(data)), "")
	leafRef, err := node.Store(fileNode, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: add %q: %w: %v", path, ErrStoreFailed, err)
	}

	childRef := node.ChildRef{Link: leafRef.Link, Secret: leafRef.Secret, KindHint: node.KindFile, Size: uint64(len(data))}
	newRoot, err := node.Graft(m.entryRoot, m.entryNode, path, childRef, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: add %q: %w", path, mapNodeErr(err))
	}
	if err := m.adoptRoot(newRoot); err != nil {
		return fmt.Errorf("mount: add %q: %w", path, err)
	}

	m.opsLog.AppendAdd(m.secretKey.Public(), path, leafRef.Link, leafRef.Secret, uint64(len(data)), node.KindFile)
	return m.recomputePins()
}

// Mkdir creates an empty directory at path. Unlike Add, it does not
// create missing intermediate directories.
func (m *Mount) Mkdir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parent, name, ok := splitParent(path)
	if !ok {
		return fmt.Errorf("mount: mkdir %q: %w", path, ErrAlreadyExists)
	}

	_, parentNode, err := node.Walk(m.entryRoot, m.entryNode, parent, m.blobs)
	if err != nil {
		if errors.Is(err, node.ErrNotFound) || errors.Is(err, node.ErrNotADirectory) {
			return fmt.Errorf("mount: mkdir %q: %w", path, ErrParentMissing)
		}
		return fmt.Errorf("mount: mkdir %q: %w", path, mapNodeErr(err))
	}
	if _, exists := parentNode.Children[name]; exists {
		return fmt.Errorf("mount: mkdir %q: %w", path, ErrAlreadyExists)
	}

	leafRef, err := node.Store(node.NewDir(), m.blobs)
	if err != nil {
		return fmt.Errorf("mount: mkdir %q: %w: %v", path, ErrStoreFailed, err)
	}

	childRef := node.ChildRef{Link: leafRef.Link, Secret: leafRef.Secret, KindHint: node.KindDir}
	newRoot, err := node.Graft(m.entryRoot, m.entryNode, path, childRef, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: mkdir %q: %w", path, mapNodeErr(err))
	}
	if err := m.adoptRoot(newRoot); err != nil {
		return fmt.Errorf("mount: mkdir %q: %w", path, err)
	}

	m.opsLog.AppendAdd(m.secretKey.Public(), path, leafRef.Link, leafRef.Secret, 0, node.KindDir)
	return m.recomputePins()
}

// Rm removes the entry at path, recursively for directories.
func (m *Mount) Rm(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if node.SplitPath(path) == nil {
		return fmt.Errorf("mount: rm: cannot remove the bucket root")
	}

	newRoot, err := node.Remove(m.entryRoot, m.entryNode, path, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: rm %q: %w", path, mapNodeErr(err))
	}
	if err := m.adoptRoot(newRoot); err != nil {
		return fmt.Errorf("mount: rm %q: %w", path, err)
	}

	m.opsLog.AppendRemove(m.secretKey.Public(), path)
	return m.recomputePins()
}

// Mv moves src to dst, preserving the moved subtree's link and secret
// unchanged so its content identity survives the move for CRDT merges
// (spec.md §4.4).
func (m *Mount) Mv(src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	srcParent, srcName, ok := splitParent(src)
	if !ok {
		return fmt.Errorf("mount: mv %q %q: cannot move the bucket root", src, dst)
	}

	_, srcParentNode, err := node.Walk(m.entryRoot, m.entryNode, srcParent, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, mapNodeErr(err))
	}
	childRef, exists := srcParentNode.Children[srcName]
	if !exists {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, ErrNotFound)
	}

	if _, _, err := node.Walk(m.entryRoot, m.entryNode, dst, m.blobs); err == nil {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, ErrDstExists)
	} else if !errors.Is(err, node.ErrNotFound) {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, mapNodeErr(err))
	}

	afterRemove, err := node.Remove(m.entryRoot, m.entryNode, src, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, mapNodeErr(err))
	}
	afterRemoveNode, err := node.Load(afterRemove, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, err)
	}

	newRoot, err := node.Graft(afterRemove, afterRemoveNode, dst, childRef, m.blobs)
	if err != nil {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, mapNodeErr(err))
	}
	if err := m.adoptRoot(newRoot); err != nil {
		return fmt.Errorf("mount: mv %q %q: %w", src, dst, err)
	}

	m.opsLog.AppendMove(m.secretKey.Public(), src, dst)
	return m.recomputePins()
}

// ensureDir creates every missing directory along path's segments,
// recording a distinct Add(dir) op per created level (spec.md §4.4's
// auto-mkdir policy). An intermediate segment that exists as a file is
// ErrParentMissing: it blocks the directory that would have to hold it.
func (m *Mount) ensureDir(path string) error {
	segments := node.SplitPath(path)

	n := m.entryNode
	walked := ""
	for _, seg := range segments {
		if !n.IsDir() {
			return ErrParentMissing
		}

		full := seg
		if walked != "" {
			full = walked + "/" + seg
		}

		existing, ok := n.Children[seg]
		if ok {
			if existing.KindHint != node.KindDir {
				return ErrParentMissing
			}
			childNode, err := node.Load(node.Ref{Link: existing.Link, Secret: existing.Secret}, m.blobs)
			if err != nil {
				return err
			}
			n = childNode
			walked = full
			continue
		}

		leafRef, err := node.Store(node.NewDir(), m.blobs)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreFailed, err)
		}
		childRef := node.ChildRef{Link: leafRef.Link, Secret: leafRef.Secret, KindHint: node.KindDir}

		newRoot, err := node.Graft(m.entryRoot, m.entryNode, full, childRef, m.blobs)
		if err != nil {
			return mapNodeErr(err)
		}
		if err := m.adoptRoot(newRoot); err != nil {
			return err
		}
		m.opsLog.AppendAdd(m.secretKey.Public(), full, leafRef.Link, leafRef.Secret, 0, node.KindDir)

		n = node.NewDir()
		walked = full
	}
	return nil
}

// adoptRoot re-points the Mount at a freshly-grafted root, reloading
// entryNode from it.
func (m *Mount) adoptRoot(newRoot node.Ref) error {
	newNode, err := node.Load(newRoot, m.blobs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	m.entryRoot = newRoot
	m.entryNode = newNode
	return nil
}

// recomputePins rebuilds the live reachable-hash set from the current
// tree, the invariant's lower bound (spec.md §4.4: pins ⊇ reachable ∪
// {ops_log_link}). save adds ops_log_link on top when it freezes pins
// into the saved manifest.
func (m *Mount) recomputePins() error {
	pins, err := node.CollectReachable(m.entryRoot, m.blobs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreFailed, err)
	}
	m.pins = pins
	return nil
}
