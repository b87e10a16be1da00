package bytes

import (
	"fmt"
)

const (
	// MaxVarIntLen is the maximum number of 7-bit groups in an encoded VarInt.
	MaxVarIntLen = 5
	// MaxVarLongLen is the maximum number of 7-bit groups in an encoded VarLong.
	MaxVarLongLen = 10

	segmentBits  = 0x7F
	continueBit  = 0x80
	segmentShift = 7
)

// EncodeVarInt returns the canonical (minimal length) encoding of value.
// Negative values are encoded as their unsigned two's complement and
// always take the full five bytes.
func EncodeVarInt(value int32) []byte {
	return AppendVarInt(make([]byte, 0, VarIntSize(value)), value)
}

// AppendVarInt appends the encoding of value to dst and returns the extended slice.
func AppendVarInt(dst []byte, value int32) []byte {
	v := uint32(value)
	for v&^segmentBits != 0 {
		dst = append(dst, byte(v&segmentBits)|continueBit)
		v >>= segmentShift
	}
	return append(dst, byte(v))
}

// VarIntSize returns the number of bytes EncodeVarInt will produce for value.
func VarIntSize(value int32) int {
	v := uint32(value)
	size := 1
	for v >= continueBit {
		v >>= segmentShift
		size++
	}
	return size
}

// DecodeVarInt decodes one VarInt from the front of src, returning the value and
// the number of bytes consumed. ErrIncomplete is returned if src ends before the
// terminating group and ErrMalformedVarInt if five groups pass without one.
func DecodeVarInt(src []byte) (int32, int, error) {
	var result uint32
	for i := 0; i < MaxVarIntLen; i++ {
		if i >= len(src) {
			return 0, 0, ErrIncomplete
		}
		b := src[i]
		result |= uint32(b&segmentBits) << (segmentShift * i)
		if b&continueBit == 0 {
			return int32(result), i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: more than %d bytes", ErrMalformedVarInt, MaxVarIntLen)
}

// EncodeVarLong returns the canonical encoding of a 64-bit value.
func EncodeVarLong(value int64) []byte {
	return AppendVarLong(make([]byte, 0, VarLongSize(value)), value)
}

// AppendVarLong appends the encoding of value to dst and returns the extended slice.
func AppendVarLong(dst []byte, value int64) []byte {
	v := uint64(value)
	for v&^segmentBits != 0 {
		dst = append(dst, byte(v&segmentBits)|continueBit)
		v >>= segmentShift
	}
	return append(dst, byte(v))
}

// VarLongSize returns the number of bytes EncodeVarLong will produce for value.
func VarLongSize(value int64) int {
	v := uint64(value)
	size := 1
	for v >= continueBit {
		v >>= segmentShift
		size++
	}
	return size
}

// DecodeVarLong is the 64-bit counterpart of DecodeVarInt, limited to ten groups.
func DecodeVarLong(src []byte) (int64, int, error) {
	var result uint64
	for i := 0; i < MaxVarLongLen; i++ {
		if i >= len(src) {
			return 0, 0, ErrIncomplete
		}
		b := src[i]
		result |= uint64(b&segmentBits) << (segmentShift * i)
		if b&continueBit == 0 {
			return int64(result), i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: more than %d bytes", ErrMalformedVarInt, MaxVarLongLen)
}
