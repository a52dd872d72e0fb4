package transport

import (
	"github.com/google/uuid"

	"github.com/jaxbucket/jaxbucket/pkg/codec"
	"github.com/jaxbucket/jaxbucket/pkg/jaxcrypto"
)

// Wire message shapes for the four RPCs, encoded with cborCodec. These
// are deliberately separate from the domain types (Manifest, OpEntry)
// they carry: FetchManifest, for instance, hands back raw bytes rather
// than a decoded Manifest, because the caller must verify the signature
// itself before trusting anything in it.

type headRequest struct {
	BucketID uuid.UUID `cbor:"bucket_id"`
}

type headResponse struct {
	Link    codec.Link `cbor:"link"`
	Present bool       `cbor:"present"`
}

type fetchManifestRequest struct {
	Link codec.Link `cbor:"link"`
}

type fetchManifestResponse struct {
	Data []byte `cbor:"data"`
}

type fetchBlobRequest struct {
	Hash jaxcrypto.Hash `cbor:"hash"`
}

// fetchBlobChunk is one frame of a server-streamed FetchBlob response.
type fetchBlobChunk struct {
	Data []byte `cbor:"data"`
}

type announceRequest struct {
	FromPub  jaxcrypto.PublicKey `cbor:"from_pub"`
	BucketID uuid.UUID           `cbor:"bucket_id"`
	NewHead  codec.Link          `cbor:"new_head"`
}

type announceResponse struct{}
