// Package codec serializes render-cache artifacts and validation flags.
//
// CBOR is the default artifact codec: choice sets carry keyasint tags so the
// encoded metadata stays small. Msgpack and JSON are drop-in alternatives.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
