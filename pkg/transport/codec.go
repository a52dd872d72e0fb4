package transport

import (
	"google.golang.org/grpc/encoding"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
)

// cborCodecName is registered with grpc's encoding registry so every
// message on the wire is canonical DAG-CBOR instead of protobuf —
// there is no .proto source for this service to generate a codec from,
// and DAG-CBOR is already this module's one wire format for every other
// typed block (spec.md §6.4), so the RPC layer reuses it rather than
// introducing a second encoding.
const cborCodecName = "jaxbucket-cbor"

type cborCodec struct{}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	return codec.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	return codec.Unmarshal(data, v)
}

func (cborCodec) Name() string { return cborCodecName }

func init() {
	encoding.RegisterCodec(cborCodec{})
}
