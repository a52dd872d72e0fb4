package mount

import (
	"errors"
	"fmt"
	"io"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
)

// DirEntry is one listed child: name, kind, and size (files only). Node
// carries no timestamp, so ls never reports an mtime.
type DirEntry struct {
	Name string
	Kind node.Kind
	Size uint64
}

// Ls lists path's children in name-sorted order. If deep is true, it
// lists every descendant, each Name being the full path relative to the
// listed directory.
func (m *Mount) Ls(path string, deep bool) ([]DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, n, err := node.Walk(m.entryRoot, m.entryNode, path, m.blobs)
	if err != nil {
		return nil, mapNodeErr(err)
	}
	if !n.IsDir() {
		return nil, fmt.Errorf("mount: ls %q: %w", path, ErrNotADirectory)
	}

	if !deep {
		return m.lsShallow(n), nil
	}
	return m.lsDeep("", n)
}

func (m *Mount) lsShallow(n node.Node) []DirEntry {
	names := n.SortedNames()
	out := make([]DirEntry, 0, len(names))
	for _, name := range names {
		child := n.Children[name]
		out = append(out, DirEntry{Name: name, Kind: child.KindHint, Size: child.Size})
	}
	return out
}

func (m *Mount) lsDeep(prefix string, n node.Node) ([]DirEntry, error) {
	var out []DirEntry
	for _, name := range n.SortedNames() {
		child := n.Children[name]
		full := name
		if prefix != "" {
			full = prefix + "/" + name
		}
		out = append(out, DirEntry{Name: full, Kind: child.KindHint, Size: child.Size})
		if child.KindHint == node.KindDir {
			childRef := node.Ref{Link: child.Link, Secret: child.Secret}
			childNode, err := node.Load(childRef, m.blobs)
			if err != nil {
				return nil, mapNodeErr(err)
			}
			nested, err := m.lsDeep(full, childNode)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
	}
	return out, nil
}

// Cat returns the decrypted content of the file at path in full.
func (m *Mount) Cat(path string) ([]byte, error) {
	r, err := m.CatStream(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// CatStream returns a reader over the decrypted content of the file at
// path. The blob store's stream is read in full and decrypted in
// memory: the AEAD frame's integrity check requires the whole
// ciphertext, so streaming below the blob layer buys nothing here.
func (m *Mount) CatStream(path string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, n, err := node.Walk(m.entryRoot, m.entryNode, path, m.blobs)
	if err != nil {
		return nil, mapNodeErr(err)
	}
	if !n.IsFile() {
		return nil, fmt.Errorf("mount: cat %q: %w", path, ErrNotAFile)
	}

	sealed, ok, err := m.blobs.Get(n.ContentLink.Hash)
	if err != nil {
		return nil, fmt.Errorf("mount: cat %q: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("mount: cat %q: %w: %s", path, ErrNotFound, n.ContentLink)
	}

	plaintext, err := n.ContentSecret.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("mount: cat %q: %w: %v", path, ErrIntegrityMismatch, err)
	}

	return io.NopCloser(newByteReader(plaintext)), nil
}

func newByteReader(b []byte) io.Reader {
	return &byteReader{data: b}
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func mapNodeErr(err error) error {
	switch {
	case errors.Is(err, node.ErrNotFound):
		return fmt.Errorf("%w", ErrNotFound)
	case errors.Is(err, node.ErrNotADirectory):
		return fmt.Errorf("%w", ErrNotADirectory)
	case errors.Is(err, node.ErrNotAFile):
		return fmt.Errorf("%w", ErrNotAFile)
	case errors.Is(err, jaxcrypto.ErrIntegrityMismatch), errors.Is(err, node.ErrIntegrityMismatch):
		return fmt.Errorf("%w", ErrIntegrityMismatch)
	default:
		return err
	}
}
