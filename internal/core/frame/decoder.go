// Package frame recovers length-prefixed frames from a byte stream that may
// split or coalesce them arbitrarily.
package frame

import (
	"errors"
	"fmt"
	"io"

	"github.com/pandora-mc/pandora/internal/core/bytes"
)

// DefaultMaxSize is the largest body a three-byte length prefix can declare.
const DefaultMaxSize = 2097151

var (
	// ErrFrameTooLarge is returned when a length prefix exceeds the decoder's ceiling.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrMalformedFrame is returned for a frame that cannot hold a packet id.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Frame is one complete inbound message.
type Frame struct {
	ID      int32
	Payload []byte
}

// Buffer returns a reader over the frame payload.
func (f Frame) Buffer() *bytes.Buffer {
	return bytes.NewBuffer(f.Payload)
}

// Build returns the wire encoding of a frame with the given id and payload.
func Build(id int32, payload []byte) []byte {
	return bytes.NewBuffer(payload).BuildFrame(id)
}

// Decoder accumulates inbound bytes and yields frames once they are complete.
type Decoder struct {
	buf     []byte
	maxSize int
}

// NewDecoder returns a Decoder rejecting frames whose declared length exceeds
// maxSize. A non-positive maxSize selects DefaultMaxSize.
func NewDecoder(maxSize int) *Decoder {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Decoder{maxSize: maxSize}
}

// Write appends p to the accumulation buffer. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Buffered returns the number of bytes waiting to form a frame.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Next extracts the next complete frame. bytes.ErrIncomplete means more input
// is needed; any other error means the stream is corrupt and can't be resumed.
func (d *Decoder) Next() (Frame, error) {
	length, n, err := bytes.DecodeVarInt(d.buf)
	if err != nil {
		return Frame{}, err
	}
	if length <= 0 {
		return Frame{}, fmt.Errorf("%w: declared length %d", ErrMalformedFrame, length)
	}
	if int(length) > d.maxSize {
		return Frame{}, fmt.Errorf("%w: declared length %d exceeds %d", ErrFrameTooLarge, length, d.maxSize)
	}
	if len(d.buf)-n < int(length) {
		return Frame{}, bytes.ErrIncomplete
	}

	body := d.buf[n : n+int(length)]
	id, idLen, err := bytes.DecodeVarInt(body)
	if errors.Is(err, bytes.ErrIncomplete) {
		return Frame{}, fmt.Errorf("%w: packet id runs past the frame", bytes.ErrMalformedVarInt)
	} else if err != nil {
		return Frame{}, err
	}

	f := Frame{ID: id, Payload: make([]byte, len(body)-idLen)}
	copy(f.Payload, body[idLen:])

	rest := len(d.buf) - n - int(length)
	copy(d.buf, d.buf[n+int(length):])
	d.buf = d.buf[:rest]
	return f, nil
}

// ReadFrom reads from r until at least one frame is complete and returns the
// frames now available. It returns io.EOF on a clean end of stream and
// io.ErrUnexpectedEOF if the stream ends with a partial frame buffered.
// Frames decoded ahead of a corrupt one are returned alongside the error.
func (d *Decoder) ReadFrom(r io.Reader, scratch []byte) ([]Frame, error) {
	for {
		frames, err := d.drain()
		if err != nil || len(frames) > 0 {
			return frames, err
		}

		n, err := r.Read(scratch)
		if n > 0 {
			_, _ = d.Write(scratch[:n])
		}
		if err == io.EOF {
			if frames, derr := d.drain(); derr != nil || len(frames) > 0 {
				return frames, derr
			}
			if d.Buffered() > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		} else if err != nil {
			return nil, err
		}
	}
}

func (d *Decoder) drain() ([]Frame, error) {
	var frames []Frame
	for {
		f, err := d.Next()
		if errors.Is(err, bytes.ErrIncomplete) {
			return frames, nil
		} else if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}
