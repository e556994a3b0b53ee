// Package wire encodes and decodes i3 IPC frames.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic prefixes every frame in both directions.
const Magic = "i3-ipc"

const (
	MagicLen  = len(Magic)
	HeaderLen = MagicLen + 4 + 4

	// DefaultMaxPayload caps declared payload lengths; GET_TREE on large
	// layouts stays far below it.
	DefaultMaxPayload uint32 = 64 << 20
)

var (
	ErrShortHeader     = errors.New("wire: header needs 14 bytes")
	ErrShortPayload    = errors.New("wire: payload shorter than declared length")
	ErrUnexpectedEOF   = errors.New("wire: stream closed before frame was complete")
	ErrPayloadTooLarge = errors.New("wire: declared payload length exceeds limit")
)

// BadMagicError reports the bytes seen where the magic tag was expected.
type BadMagicError struct {
	Got []byte
}

func (e *BadMagicError) Error() string {
	return fmt.Sprintf("wire: bad magic %q (% x), want %q", e.Got, e.Got, Magic)
}

// Header is the fixed-size prefix of a frame.
type Header struct {
	Length uint32
	Type   uint32
}

// Frame is one fully received wire unit.
type Frame struct {
	Type    uint32
	Payload []byte
}

// Encode builds a complete frame for payload.
func Encode(typeCode uint32, payload string) []byte {
	return AppendFrame(make([]byte, 0, HeaderLen+len(payload)), typeCode, []byte(payload))
}

// AppendFrame appends the frame bytes to dst and returns the extended slice.
func AppendFrame(dst []byte, typeCode uint32, payload []byte) []byte {
	dst = append(dst, Magic...)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	dst = binary.LittleEndian.AppendUint32(dst, typeCode)
	return append(dst, payload...)
}

// DecodeHeader validates the magic tag and reads length and type code.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < MagicLen {
		return Header{}, ErrShortHeader
	}
	if err := checkMagic(b[:MagicLen]); err != nil {
		return Header{}, err
	}
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		Length: binary.LittleEndian.Uint32(b[MagicLen : MagicLen+4]),
		Type:   binary.LittleEndian.Uint32(b[MagicLen+4 : HeaderLen]),
	}, nil
}

// DecodePayload returns exactly length bytes from b.
func DecodePayload(b []byte, length uint32) ([]byte, error) {
	if uint64(len(b)) < uint64(length) {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrShortPayload, len(b), length)
	}
	return b[:length:length], nil
}

func checkMagic(b []byte) error {
	if bytes.Equal(b, []byte(Magic)) {
		return nil
	}
	return &BadMagicError{Got: bytes.Clone(b)}
}
