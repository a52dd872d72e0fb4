package codec

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encModeOnce sync.Once
	encMode     cbor.EncMode
	decModeOnce sync.Once
	decMode     cbor.DecMode
)

// dagCBOREncMode returns a deterministic (map-key-sorted, canonical)
// encoding mode, so that two peers encoding the same value produce
// byte-identical output — required for signature verification (spec.md
// §4.6) and for content addressing of encoded blocks.
func dagCBOREncMode() cbor.EncMode {
	encModeOnce.Do(func() {
		opts := cbor.CanonicalEncOptions()
		m, err := opts.EncMode()
		if err != nil {
			panic(fmt.Sprintf("codec: build canonical encode mode: %v", err))
		}
		encMode = m
	})
	return encMode
}

func dagCBORDecMode() cbor.DecMode {
	decModeOnce.Do(func() {
		opts := cbor.DecOptions{
			DupMapKey: cbor.DupMapKeyEnforcedAPF,
		}
		m, err := opts.DecMode()
		if err != nil {
			panic(fmt.Sprintf("codec: build decode mode: %v", err))
		}
		decMode = m
	})
	return decMode
}

// Marshal encodes v as canonical DAG-CBOR.
func Marshal(v interface{}) ([]byte, error) {
	b, err := dagCBOREncMode().Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	return b, nil
}

// Unmarshal decodes canonical DAG-CBOR into v.
func Unmarshal(data []byte, v interface{}) error {
	if err := dagCBORDecMode().Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: unmarshal: %w", err)
	}
	return nil
}
