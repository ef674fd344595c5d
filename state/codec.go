package state

import "github.com/fxamacker/cbor/v2"

// Codec is the wire encoding state records use, factored out so tests can
// substitute a plain-JSON codec for readable fixtures without touching the
// CBOR-on-the-wire production path.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// CBORCodec is the production codec, matching every other on-disk record in
// the object store façade (store.WithMeta's sidecar index, keys/tee.go's
// RPC envelopes).
type CBORCodec struct{}

func (CBORCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (CBORCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }
