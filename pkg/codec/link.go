package codec

import (
	"fmt"

	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// Tag identifies how the bytes behind a Link's hash are encoded.
type Tag uint8

const (
	// TagRaw marks a Link pointing at opaque encrypted bytes (sealed file
	// content, the sealed op log).
	TagRaw Tag = iota
	// TagDagCBOR marks a Link pointing at a DAG-CBOR encoded block: a
	// manifest, or a tree node sealed around its DAG-CBOR encoding.
	TagDagCBOR
)

func (t Tag) String() string {
	switch t {
	case TagRaw:
		return "raw"
	case TagDagCBOR:
		return "dag-cbor"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Link is a typed pointer into the blob store: a content hash plus the
// codec used to interpret the bytes behind it (spec.md §3.1).
type Link struct {
	Hash jaxcrypto.Hash `cbor:"h"`
	Tag  Tag            `cbor:"t"`
}

// IsZero reports whether l is the zero Link (used as "no link").
func (l Link) IsZero() bool {
	return l.Hash.IsZero() && l.Tag == TagRaw
}

func (l Link) String() string {
	return fmt.Sprintf("%s:%s", l.Tag, l.Hash)
}
