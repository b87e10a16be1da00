package packets

import "github.com/pandora-mc/pandora/internal/core/bytes"

// Packet types for the status state. Requests and responses share ids.
const (
	StatusRequestType  = 0x00
	StatusResponseType = 0x00
	StatusPingType     = 0x01
	StatusPongType     = 0x01
)

// ServerStatus is the JSON document shown in the client's server list.
type ServerStatus struct {
	Version     StatusVersion `json:"version"`
	Players     StatusPlayers `json:"players"`
	Description ChatComponent `json:"description"`
}

type StatusVersion struct {
	Name     string `json:"name"`
	Protocol int    `json:"protocol"`
}

type StatusPlayers struct {
	Max    int `json:"max"`
	Online int `json:"online"`
}

// StatusRequest has no fields.
type StatusRequest struct{}

func (r *StatusRequest) ID() int32                      { return StatusRequestType }
func (r *StatusRequest) Encode(*bytes.Buffer)           {}
func (r *StatusRequest) Decode(buf *bytes.Buffer) error { return nil }

type StatusResponse struct {
	Status ServerStatus
}

func (r *StatusResponse) ID() int32 { return StatusResponseType }

func (r *StatusResponse) Encode(buf *bytes.Buffer) {
	writeJSON(buf, &r.Status)
}

func (r *StatusResponse) Decode(buf *bytes.Buffer) error {
	return readJSON(buf, &r.Status)
}

// Ping carries an opaque nonce that the server echoes back in a Pong.
type Ping struct {
	Payload [8]byte
}

func (p *Ping) ID() int32 { return StatusPingType }

func (p *Ping) Encode(buf *bytes.Buffer) {
	buf.WriteBytes(p.Payload[:])
}

func (p *Ping) Decode(buf *bytes.Buffer) error {
	return readNonce(buf, &p.Payload)
}

type Pong struct {
	Payload [8]byte
}

func (p *Pong) ID() int32 { return StatusPongType }

func (p *Pong) Encode(buf *bytes.Buffer) {
	buf.WriteBytes(p.Payload[:])
}

func (p *Pong) Decode(buf *bytes.Buffer) error {
	return readNonce(buf, &p.Payload)
}

func readNonce(buf *bytes.Buffer, dst *[8]byte) error {
	b, err := buf.ReadBytes(len(dst))
	if err != nil {
		return err
	}
	copy(dst[:], b)
	return nil
}
