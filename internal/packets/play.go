package packets

import (
	"fmt"
	"unicode/utf16"

	"github.com/pandora-mc/pandora/internal/core/bytes"
)

// Serverbound packet types for the play state.
const (
	PlayTeleportConfirmType   = 0x00
	PlayChatMessageType       = 0x03
	PlayKeepAliveResponseType = 0x10
)

// Clientbound packet types for the play state.
const (
	PlayDisconnectType            = 0x19
	PlayKeepAliveType             = 0x1F
	PlayChunkDataType             = 0x20
	PlayJoinGameType              = 0x24
	PlayPlayerPositionAndLookType = 0x34
)

// MaxChatMessageLen is the longest chat message a client may send, counted in
// UTF-16 code units the way the client counts characters.
const MaxChatMessageLen = 256

// JoinGame moves the client into the world. DimensionCodec and Dimension are
// pre-serialized NBT written as-is.
type JoinGame struct {
	EntityID            int32
	Hardcore            bool
	GameMode            uint8
	PreviousGameMode    int8
	WorldNames          []string
	DimensionCodec      []byte
	Dimension           []byte
	WorldName           string
	HashedSeed          int64
	MaxPlayers          int32
	ViewDistance        int32
	ReducedDebugInfo    bool
	EnableRespawnScreen bool
	IsDebug             bool
	IsFlat              bool
}

func (j *JoinGame) ID() int32 { return PlayJoinGameType }

func (j *JoinGame) Encode(buf *bytes.Buffer) {
	buf.WriteInt32(j.EntityID)
	buf.WriteBool(j.Hardcore)
	_ = buf.WriteByte(j.GameMode)
	buf.WriteInt8(j.PreviousGameMode)
	buf.WriteVarInt(int32(len(j.WorldNames)))
	for _, name := range j.WorldNames {
		buf.WriteString(name)
	}
	buf.WriteBytes(j.DimensionCodec)
	buf.WriteBytes(j.Dimension)
	buf.WriteString(j.WorldName)
	buf.WriteInt64(j.HashedSeed)
	buf.WriteVarInt(j.MaxPlayers)
	buf.WriteVarInt(j.ViewDistance)
	buf.WriteBool(j.ReducedDebugInfo)
	buf.WriteBool(j.EnableRespawnScreen)
	buf.WriteBool(j.IsDebug)
	buf.WriteBool(j.IsFlat)
}

// ChunkData carries one chunk column. Data is everything after the two
// coordinates, already serialized.
type ChunkData struct {
	X, Z int32
	Data []byte
}

func (c *ChunkData) ID() int32 { return PlayChunkDataType }

func (c *ChunkData) Encode(buf *bytes.Buffer) {
	buf.WriteInt32(c.X)
	buf.WriteInt32(c.Z)
	buf.WriteBytes(c.Data)
}

func (c *ChunkData) Decode(buf *bytes.Buffer) error {
	var err error
	if c.X, err = buf.ReadInt32(); err != nil {
		return err
	}
	if c.Z, err = buf.ReadInt32(); err != nil {
		return err
	}
	c.Data = buf.ReadRemaining()
	return nil
}

type PlayerPositionAndLook struct {
	X, Y, Z    float64
	Yaw, Pitch float32
	Flags      int8
	TeleportID int32
}

func (p *PlayerPositionAndLook) ID() int32 { return PlayPlayerPositionAndLookType }

func (p *PlayerPositionAndLook) Encode(buf *bytes.Buffer) {
	buf.WriteFloat64(p.X)
	buf.WriteFloat64(p.Y)
	buf.WriteFloat64(p.Z)
	buf.WriteFloat32(p.Yaw)
	buf.WriteFloat32(p.Pitch)
	buf.WriteInt8(p.Flags)
	buf.WriteVarInt(p.TeleportID)
}

func (p *PlayerPositionAndLook) Decode(buf *bytes.Buffer) error {
	var err error
	for _, f := range []*float64{&p.X, &p.Y, &p.Z} {
		if *f, err = buf.ReadFloat64(); err != nil {
			return err
		}
	}
	if p.Yaw, err = buf.ReadFloat32(); err != nil {
		return err
	}
	if p.Pitch, err = buf.ReadFloat32(); err != nil {
		return err
	}
	if p.Flags, err = buf.ReadInt8(); err != nil {
		return err
	}
	p.TeleportID, err = buf.ReadVarInt()
	return err
}

// KeepAlive is sent periodically; the client must answer with a
// KeepAliveResponse carrying the same id.
type KeepAlive struct {
	KeepAliveID int64
}

func (k *KeepAlive) ID() int32 { return PlayKeepAliveType }

func (k *KeepAlive) Encode(buf *bytes.Buffer) {
	buf.WriteInt64(k.KeepAliveID)
}

func (k *KeepAlive) Decode(buf *bytes.Buffer) (err error) {
	k.KeepAliveID, err = buf.ReadInt64()
	return err
}

type KeepAliveResponse struct {
	KeepAliveID int64
}

func (k *KeepAliveResponse) ID() int32 { return PlayKeepAliveResponseType }

func (k *KeepAliveResponse) Encode(buf *bytes.Buffer) {
	buf.WriteInt64(k.KeepAliveID)
}

func (k *KeepAliveResponse) Decode(buf *bytes.Buffer) (err error) {
	k.KeepAliveID, err = buf.ReadInt64()
	return err
}

// Disconnect ends a play session with a reason shown to the player.
type Disconnect struct {
	Reason ChatComponent
}

func (d *Disconnect) ID() int32 { return PlayDisconnectType }

func (d *Disconnect) Encode(buf *bytes.Buffer) {
	writeJSON(buf, &d.Reason)
}

func (d *Disconnect) Decode(buf *bytes.Buffer) error {
	return readJSON(buf, &d.Reason)
}

type ChatMessage struct {
	Message string
}

func (c *ChatMessage) ID() int32 { return PlayChatMessageType }

func (c *ChatMessage) Encode(buf *bytes.Buffer) {
	buf.WriteString(c.Message)
}

func (c *ChatMessage) Decode(buf *bytes.Buffer) error {
	msg, err := buf.ReadString()
	if err != nil {
		return err
	}
	if n := len(utf16.Encode([]rune(msg))); n > MaxChatMessageLen {
		return fmt.Errorf("%w: chat message of %d characters", bytes.ErrInvalidEncoding, n)
	}
	c.Message = msg
	return nil
}

type TeleportConfirm struct {
	TeleportID int32
}

func (t *TeleportConfirm) ID() int32 { return PlayTeleportConfirmType }

func (t *TeleportConfirm) Encode(buf *bytes.Buffer) {
	buf.WriteVarInt(t.TeleportID)
}

func (t *TeleportConfirm) Decode(buf *bytes.Buffer) (err error) {
	t.TeleportID, err = buf.ReadVarInt()
	return err
}
