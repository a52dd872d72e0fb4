package node

import (
	"errors"
	"sort"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// Kind distinguishes a file leaf from a directory.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
)

func (k Kind) String() string {
	if k == KindDir {
		return "dir"
	}
	return "file"
}

// ErrInvalidName is returned when a child name is empty or contains '/'.
var ErrInvalidName = errors.New("node: invalid child name")

// ErrDuplicateName names a duplicate child name. Nothing in this package
// returns it: WithChild replaces an existing entry of the same name.
var ErrDuplicateName = errors.New("node: duplicate child name")

// ChildRef is one named entry in a Directory: a typed link plus the
// per-child secret needed to decrypt it, and a hint of what it points to
// so callers can avoid a round-trip just to learn the kind.
type ChildRef struct {
	Link     codec.Link     `cbor:"l"`
	Secret   jaxcrypto.Secret `cbor:"s"`
	KindHint Kind           `cbor:"k"`
	Size     uint64         `cbor:"sz,omitempty"`
}

// Node is the DAG-CBOR payload encrypted and stored for every directory
// tree entry. Exactly one of File/Dir is populated, selected by Kind.
type Node struct {
	Kind Kind `cbor:"kind"`

	// File leaf fields.
	ContentLink   codec.Link       `cbor:"cl,omitempty"`
	ContentSecret jaxcrypto.Secret `cbor:"cs,omitempty"`
	Size          uint64           `cbor:"sz,omitempty"`
	Mime          string           `cbor:"mime,omitempty"`

	// Directory fields.
	Children map[string]ChildRef `cbor:"ch,omitempty"`
}

// NewFile constructs a file leaf node.
func NewFile(contentLink codec.Link, contentSecret jaxcrypto.Secret, size uint64, mime string) Node {
	return Node{
		Kind:          KindFile,
		ContentLink:   contentLink,
		ContentSecret: contentSecret,
		Size:          size,
		Mime:          mime,
	}
}

// NewDir constructs an empty directory node.
func NewDir() Node {
	return Node{Kind: KindDir, Children: map[string]ChildRef{}}
}

// IsDir reports whether n is a directory node.
func (n Node) IsDir() bool { return n.Kind == KindDir }

// IsFile reports whether n is a file node.
func (n Node) IsFile() bool { return n.Kind == KindFile }

// ValidName reports whether name is a legal, non-empty child name
// containing no path separator (spec.md §3.3 invariant).
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == '/' {
			return false
		}
	}
	return true
}

// WithChild returns a copy of n (which must be a directory) with ref set
// for name. n itself is left untouched — Nodes are immutable.
func (n Node) WithChild(name string, ref ChildRef) (Node, error) {
	if !n.IsDir() {
		return Node{}, ErrNotADirectory
	}
	if !ValidName(name) {
		return Node{}, ErrInvalidName
	}
	out := n.clone()
	out.Children[name] = ref
	return out, nil
}

// WithoutChild returns a copy of n with name removed, if present.
func (n Node) WithoutChild(name string) (Node, error) {
	if !n.IsDir() {
		return Node{}, ErrNotADirectory
	}
	out := n.clone()
	delete(out.Children, name)
	return out, nil
}

func (n Node) clone() Node {
	out := n
	out.Children = make(map[string]ChildRef, len(n.Children))
	for k, v := range n.Children {
		out.Children[k] = v
	}
	return out
}

// SortedNames returns the directory's child names in stable, sorted
// order, matching spec.md §4.4's "stable insertion order = name-sorted"
// requirement for ls.
func (n Node) SortedNames() []string {
	names := make([]string, 0, len(n.Children))
	for name := range n.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
