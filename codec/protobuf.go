package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Protobuf is a Codec for generated message types.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *wrapperspb.BoolValue { return &wrapperspb.BoolValue{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

var boolValue = NewProtobuf(func() *wrapperspb.BoolValue { return &wrapperspb.BoolValue{} })

// ProtoBool encodes a bool as a google.protobuf.BoolValue. It is the default
// validation-flag codec: false encodes to zero bytes, true to two.
type ProtoBool struct{}

var _ Codec[bool] = ProtoBool{}

func (ProtoBool) Encode(v bool) ([]byte, error) { return boolValue.Encode(wrapperspb.Bool(v)) }
func (ProtoBool) Decode(b []byte) (bool, error) {
	m, err := boolValue.Decode(b)
	if err != nil {
		return false, err
	}
	return m.GetValue(), nil
}
