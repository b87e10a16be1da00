package packets

import (
	"crypto/md5"
	"fmt"

	"github.com/google/uuid"

	"github.com/pandora-mc/pandora/internal/core/bytes"
)

// Packet types for the login state.
const (
	LoginStartType      = 0x00
	LoginDisconnectType = 0x00
	LoginSuccessType    = 0x02
)

// MaxUsernameLen is the longest username accepted in LoginStart, in bytes.
const MaxUsernameLen = 16

// LoginStart is sent by the client to begin logging in.
type LoginStart struct {
	Username string
}

func (l *LoginStart) ID() int32 { return LoginStartType }

func (l *LoginStart) Encode(buf *bytes.Buffer) {
	buf.WriteString(l.Username)
}

func (l *LoginStart) Decode(buf *bytes.Buffer) error {
	name, err := buf.ReadString()
	if err != nil {
		return err
	}
	if len(name) == 0 || len(name) > MaxUsernameLen {
		return fmt.Errorf("%w: username must be 1-%d bytes, got %d", bytes.ErrInvalidEncoding, MaxUsernameLen, len(name))
	}
	l.Username = name
	return nil
}

// LoginSuccess tells the client the session identity it was assigned.
type LoginSuccess struct {
	UUID     uuid.UUID
	Username string
}

func (l *LoginSuccess) ID() int32 { return LoginSuccessType }

func (l *LoginSuccess) Encode(buf *bytes.Buffer) {
	buf.WriteUUID(l.UUID)
	buf.WriteString(l.Username)
}

func (l *LoginSuccess) Decode(buf *bytes.Buffer) error {
	id, err := buf.ReadUUID()
	if err != nil {
		return err
	}
	if l.UUID, err = uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %v", bytes.ErrInvalidEncoding, err)
	}
	l.Username, err = buf.ReadString()
	return err
}

// LoginDisconnect refuses the login with a reason shown to the player.
type LoginDisconnect struct {
	Reason ChatComponent
}

func (l *LoginDisconnect) ID() int32 { return LoginDisconnectType }

func (l *LoginDisconnect) Encode(buf *bytes.Buffer) {
	writeJSON(buf, &l.Reason)
}

func (l *LoginDisconnect) Decode(buf *bytes.Buffer) error {
	return readJSON(buf, &l.Reason)
}

// OfflineUUID returns the UUID an unauthenticated server assigns to username:
// a version 3 UUID over the MD5 of "OfflinePlayer:<username>".
func OfflineUUID(username string) uuid.UUID {
	sum := md5.Sum([]byte("OfflinePlayer:" + username))
	sum[6] = sum[6]&0x0f | 0x30
	sum[8] = sum[8]&0x3f | 0x80

	id, _ := uuid.FromBytes(sum[:])
	return id
}
