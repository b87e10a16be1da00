// Package packets defines the messages of each protocol state along with a
// hand-written encoder and decoder per message type.
package packets

import (
	"encoding/json"
	"fmt"

	"github.com/pandora-mc/pandora/internal/core/bytes"
)

// Packet is a message that can be written into a frame payload.
type Packet interface {
	// ID returns the packet type id in the state the packet is sent in.
	ID() int32
	// Encode appends the packet's fields to buf.
	Encode(buf *bytes.Buffer)
}

// Decoder is implemented by messages that can be read out of a frame payload.
type Decoder interface {
	Decode(buf *bytes.Buffer) error
}

// ChatComponent is the JSON text object used for descriptions and disconnect
// reasons. Only plain text is supported.
type ChatComponent struct {
	Text string `json:"text"`
}

// writeJSON encodes v and writes it as a protocol string. The values passed
// in by this package are plain structs, which always marshal.
func writeJSON(buf *bytes.Buffer, v interface{}) {
	data, _ := json.Marshal(v)
	buf.WriteString(string(data))
}

func readJSON(buf *bytes.Buffer, v interface{}) error {
	s, err := buf.ReadString()
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %v", bytes.ErrInvalidEncoding, err)
	}
	return nil
}
