package bytes

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxStringLen is the largest string payload accepted by ReadString, in bytes
// (32767 UTF-16 code units at up to four bytes each).
const MaxStringLen = 32767 * 4

// Buffer is a growable byte sequence with a read cursor. Reads consume from the
// cursor and fail with ErrBufferUnderflow rather than returning partial data;
// writes always append to the end.
//
// A Buffer holds exactly one packet payload and is not safe for concurrent use.
type Buffer struct {
	data   []byte
	offset int
}

// NewBuffer returns a Buffer whose readable content is data. The Buffer takes
// ownership of the slice.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Bytes returns the full content of the buffer regardless of the cursor.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the total number of bytes in the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Offset returns the position of the read cursor.
func (b *Buffer) Offset() int { return b.offset }

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.offset }

// next consumes n bytes from the cursor.
func (b *Buffer) next(n int) ([]byte, error) {
	if n < 0 || b.Remaining() < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrBufferUnderflow, n, b.offset, b.Remaining())
	}
	p := b.data[b.offset : b.offset+n]
	b.offset += n
	return p, nil
}

func (b *Buffer) ReadBool() (bool, error) {
	v, err := b.ReadByte()
	return v != 0, err
}

// ReadByte reads one unsigned byte. It satisfies io.ByteReader.
func (b *Buffer) ReadByte() (byte, error) {
	p, err := b.next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (b *Buffer) ReadInt8() (int8, error) {
	v, err := b.ReadByte()
	return int8(v), err
}

func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (b *Buffer) ReadInt16() (int16, error) {
	v, err := b.ReadUint16()
	return int16(v), err
}

func (b *Buffer) ReadInt32() (int32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(p)), nil
}

func (b *Buffer) ReadInt64() (int64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(p)), nil
}

func (b *Buffer) ReadFloat32() (float32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(p)), nil
}

func (b *Buffer) ReadFloat64() (float64, error) {
	p, err := b.next(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p)), nil
}

// ReadVarInt reads a VarInt at the cursor. Running out of bytes mid-value is an
// underflow since the buffer already holds a complete frame.
func (b *Buffer) ReadVarInt() (int32, error) {
	v, n, err := DecodeVarInt(b.data[b.offset:])
	if errors.Is(err, ErrIncomplete) {
		return 0, fmt.Errorf("%w: unterminated varint at offset %d", ErrBufferUnderflow, b.offset)
	} else if err != nil {
		return 0, err
	}
	b.offset += n
	return v, nil
}

func (b *Buffer) ReadVarLong() (int64, error) {
	v, n, err := DecodeVarLong(b.data[b.offset:])
	if errors.Is(err, ErrIncomplete) {
		return 0, fmt.Errorf("%w: unterminated varlong at offset %d", ErrBufferUnderflow, b.offset)
	} else if err != nil {
		return 0, err
	}
	b.offset += n
	return v, nil
}

// ReadString reads a VarInt byte length followed by that many bytes of UTF-8.
func (b *Buffer) ReadString() (string, error) {
	length, err := b.ReadVarInt()
	if err != nil {
		return "", err
	}
	if length < 0 || length > MaxStringLen {
		return "", fmt.Errorf("%w: string length %d", ErrInvalidEncoding, length)
	}

	p, err := b.next(int(length))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(p) {
		return "", fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidEncoding)
	}
	return string(p), nil
}

// ReadUUID reads two big-endian 64-bit halves and returns them as 32 lowercase
// hex digits without hyphens.
func (b *Buffer) ReadUUID() (string, error) {
	p, err := b.next(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(p), nil
}

// ReadBytes returns the next n bytes. The returned slice aliases the buffer.
func (b *Buffer) ReadBytes(n int) ([]byte, error) {
	return b.next(n)
}

// ReadRemaining consumes and returns every unread byte.
func (b *Buffer) ReadRemaining() []byte {
	p := b.data[b.offset:]
	b.offset = len(b.data)
	return p
}

func (b *Buffer) WriteBool(v bool) {
	if v {
		b.data = append(b.data, 1)
	} else {
		b.data = append(b.data, 0)
	}
}

// WriteByte appends one byte. The error is always nil; it exists to satisfy
// io.ByteWriter.
func (b *Buffer) WriteByte(v byte) error {
	b.data = append(b.data, v)
	return nil
}

func (b *Buffer) WriteInt8(v int8) {
	b.data = append(b.data, byte(v))
}

func (b *Buffer) WriteUint16(v uint16) {
	b.data = binary.BigEndian.AppendUint16(b.data, v)
}

func (b *Buffer) WriteInt16(v int16) {
	b.WriteUint16(uint16(v))
}

func (b *Buffer) WriteInt32(v int32) {
	b.data = binary.BigEndian.AppendUint32(b.data, uint32(v))
}

func (b *Buffer) WriteInt64(v int64) {
	b.data = binary.BigEndian.AppendUint64(b.data, uint64(v))
}

func (b *Buffer) WriteFloat32(v float32) {
	b.data = binary.BigEndian.AppendUint32(b.data, math.Float32bits(v))
}

func (b *Buffer) WriteFloat64(v float64) {
	b.data = binary.BigEndian.AppendUint64(b.data, math.Float64bits(v))
}

func (b *Buffer) WriteVarInt(v int32) {
	b.data = AppendVarInt(b.data, v)
}

func (b *Buffer) WriteVarLong(v int64) {
	b.data = AppendVarLong(b.data, v)
}

func (b *Buffer) WriteString(s string) {
	b.WriteVarInt(int32(len(s)))
	b.data = append(b.data, s...)
}

// WriteUUID writes id as two big-endian 64-bit halves.
func (b *Buffer) WriteUUID(id uuid.UUID) {
	b.data = append(b.data, id[:]...)
}

// WriteUUIDString parses s (hyphenated or 32 hex digits) and writes it with WriteUUID.
func (b *Buffer) WriteUUIDString(s string) error {
	id, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	b.WriteUUID(id)
	return nil
}

// WriteBytes appends p as-is, without a length prefix.
func (b *Buffer) WriteBytes(p []byte) {
	b.data = append(b.data, p...)
}

// BuildFrame returns a new slice containing a complete frame with the buffer's
// content as the payload:
//
//	VarInt(len(id) + len(payload)) | VarInt(id) | payload
//
// Neither the content nor the cursor of the buffer is modified.
func (b *Buffer) BuildFrame(id int32) []byte {
	bodyLen := VarIntSize(id) + len(b.data)
	frame := make([]byte, 0, VarIntSize(int32(bodyLen))+bodyLen)
	frame = AppendVarInt(frame, int32(bodyLen))
	frame = AppendVarInt(frame, id)
	return append(frame, b.data...)
}
