// Package bytes implements the primitive wire types of the protocol: VarInts,
// big-endian fixed-width fields, length-prefixed strings and UUIDs, and the
// cursor-based Buffer used to read and build packet payloads.
package bytes

import "errors"

var (
	// ErrIncomplete means the input ended before a value was terminated. It is
	// a signal to wait for more data rather than a failure.
	ErrIncomplete = errors.New("incomplete input")

	// ErrMalformedVarInt is returned for a VarInt or VarLong that exceeds its
	// maximum encoded length.
	ErrMalformedVarInt = errors.New("malformed varint")

	// ErrBufferUnderflow is returned when a read needs more bytes than remain.
	ErrBufferUnderflow = errors.New("buffer underflow")

	// ErrInvalidEncoding is returned for strings or UUIDs that can't be decoded.
	ErrInvalidEncoding = errors.New("invalid encoding")
)
