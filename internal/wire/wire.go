// Package wire frames render-cache artifacts. The header carries the page
// generation the artifact was written under and the artifact flags, so stale or
// foreign entries are rejected without decoding the payload.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version byte = 1

	hdrLen = 4 + 1 + 1 + 8 + 4
)

// Flags summarize the artifact without decoding it.
type Flags byte

const (
	FlagRandomized Flags = 1 << iota

	knownFlags = FlagRandomized
)

func (f Flags) Has(x Flags) bool { return f&x != 0 }

var (
	ErrCorrupt = errors.New("randselect: corrupt render-cache entry")
	magic4     = [...]byte{'R', 'S', 'E', 'L'}
)

// Encode frames payload:
//
//	magic(4) | ver(1) | flags(1) | gen(u64 be) | vlen(u32 be) | payload(vlen)
func Encode(gen uint64, flags Flags, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(byte(flags))

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], gen)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

// Decode validates the frame and returns a zero-copy payload slice.
// Trailing bytes, unknown flags or a short buffer are ErrCorrupt.
func Decode(b []byte) (gen uint64, flags Flags, payload []byte, err error) {
	if len(b) < hdrLen || !bytes.Equal(b[:4], magic4[:]) || b[4] != version {
		return 0, 0, nil, ErrCorrupt
	}
	flags = Flags(b[5])
	if flags&^knownFlags != 0 {
		return 0, 0, nil, ErrCorrupt
	}
	gen = binary.BigEndian.Uint64(b[6:14])
	vlen := binary.BigEndian.Uint32(b[14:18])
	if uint64(vlen) != uint64(len(b)-hdrLen) {
		return 0, 0, nil, ErrCorrupt
	}
	return gen, flags, b[hdrLen:], nil
}
