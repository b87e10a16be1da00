package packets

import "github.com/pandora-mc/pandora/internal/core/bytes"

// Packet types for the handshake state.
const (
	HandshakeType = 0x00
)

// Values of Handshake.NextState.
const (
	NextStateStatus = 1
	NextStateLogin  = 2
)

// Handshake is the first packet of every connection.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func (h *Handshake) ID() int32 { return HandshakeType }

func (h *Handshake) Encode(buf *bytes.Buffer) {
	buf.WriteVarInt(h.ProtocolVersion)
	buf.WriteString(h.ServerAddress)
	buf.WriteUint16(h.ServerPort)
	buf.WriteVarInt(h.NextState)
}

func (h *Handshake) Decode(buf *bytes.Buffer) error {
	var err error
	if h.ProtocolVersion, err = buf.ReadVarInt(); err != nil {
		return err
	}
	if h.ServerAddress, err = buf.ReadString(); err != nil {
		return err
	}
	if h.ServerPort, err = buf.ReadUint16(); err != nil {
		return err
	}
	h.NextState, err = buf.ReadVarInt()
	return err
}
