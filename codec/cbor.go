package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR is a Codec that serializes values using fxamacker/cbor.
// The zero value is NOT ready to use. Construct with NewCBOR or MustCBOR.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// CBOROptions tune NewCBOR.
type CBOROptions struct {
	// Deterministic selects RFC 8949 core deterministic encoding (sorted map
	// keys), so equal artifacts encode to equal bytes.
	Deterministic bool
	// MaxArrayElements bounds decoded arrays (choice entries); 0 => library default.
	MaxArrayElements int
	// MaxMapPairs bounds decoded maps (choice sets per artifact); 0 => library default.
	MaxMapPairs int
}

// NewCBOR constructs a CBOR codec. Times are encoded as RFC3339Nano strings.
func NewCBOR[V any](o CBOROptions) (CBOR[V], error) {
	var eo cbor.EncOptions
	if o.Deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	do := cbor.DecOptions{
		MaxArrayElements: o.MaxArrayElements,
		MaxMapPairs:      o.MaxMapPairs,
	}
	dm, err := do.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error.
// Only meant for package-level defaults and tests.
func MustCBOR[V any](o CBOROptions) CBOR[V] {
	c, err := NewCBOR[V](o)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
