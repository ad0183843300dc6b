package codec

import "fmt"

// LimitCodec wraps another codec and refuses to decode payloads larger than
// MaxDecode bytes. Encode is forwarded unchanged. MaxDecode <= 0 disables the check.
//
// Use it in front of a shared render cache: an oversized entry is rejected (and
// self-healed by the cache) instead of being decoded into a huge artifact.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("codec: payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
