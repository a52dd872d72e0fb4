package oplog

import (
	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
	"github.com/jaxbucket/jaxbucket/pkg/node"
)

// Kind identifies what an OpEntry does.
type Kind uint8

const (
	KindAdd Kind = iota
	KindRemove
	KindMove
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindRemove:
		return "remove"
	case KindMove:
		return "move"
	default:
		return "unknown"
	}
}

// OpEntry is one entry in a PathOpLog (spec.md §3.4). Exactly the fields
// relevant to Kind are populated:
//   - Add: Path, Link, Secret, Size, ChildKind
//   - Remove: Path
//   - Move: Path (source), Dst
type OpEntry struct {
	OpID     uint64           `cbor:"id"`
	Author   jaxcrypto.PublicKey `cbor:"author"`
	Lamport  uint64           `cbor:"lamport"`
	WallTime int64            `cbor:"wall_time"`
	Kind     Kind             `cbor:"kind"`

	Path string `cbor:"path"`
	Dst  string `cbor:"dst,omitempty"`

	Link      codec.Link       `cbor:"link,omitempty"`
	Secret    jaxcrypto.Secret `cbor:"secret,omitempty"`
	Size      uint64           `cbor:"size,omitempty"`
	ChildKind node.Kind        `cbor:"child_kind,omitempty"`
}

// order reports whether a sorts strictly before b under the log's total
// order: (lamport, author).
func order(a, b OpEntry) bool {
	if a.Lamport != b.Lamport {
		return a.Lamport < b.Lamport
	}
	return a.Author.Less(b.Author)
}
