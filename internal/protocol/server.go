// Package protocol implements the per-connection state machine: which packets
// are meaningful in each state, what they do, and which state comes next.
package protocol

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pandora-mc/pandora/internal/core"
	"github.com/pandora-mc/pandora/internal/core/bytes"
	"github.com/pandora-mc/pandora/internal/core/client"
	"github.com/pandora-mc/pandora/internal/core/frame"
	"github.com/pandora-mc/pandora/internal/core/world"
	"github.com/pandora-mc/pandora/internal/packets"
)

var (
	// ErrIllegalStateTransition is returned when a client asks for a state
	// that can't follow its current one.
	ErrIllegalStateTransition = errors.New("illegal state transition")
	// ErrDisconnected is returned after the server has told the client why it
	// is being disconnected. The connection should be closed without further
	// complaint.
	ErrDisconnected = errors.New("disconnected by server")
)

type handlerKey struct {
	state client.State
	id    int32
}

type handlerFunc func(ctx context.Context, c *client.Client, buf *bytes.Buffer) error

// Server is the game server backend. It answers server list pings, logs
// players in, and places them in the world served by World.
type Server struct {
	Name     string
	Config   *core.Config
	Logger   *logrus.Logger
	Registry *client.Registry
	World    world.Provider

	handlers map[handlerKey]handlerFunc
}

func (s *Server) Identifier() string {
	return s.Name
}

func (s *Server) Init(_ context.Context) error {
	if s.Registry == nil {
		return errors.New("no client registry configured")
	}
	if s.World == nil {
		return errors.New("no world provider configured")
	}
	if s.Config.Play.KeepAliveInterval <= 0 {
		return fmt.Errorf("invalid keep-alive interval %v", s.Config.Play.KeepAliveInterval)
	}

	s.handlers = map[handlerKey]handlerFunc{
		{client.Handshake, packets.HandshakeType}:        s.handleHandshake,
		{client.Status, packets.StatusRequestType}:       s.handleStatusRequest,
		{client.Status, packets.StatusPingType}:          s.handlePing,
		{client.Login, packets.LoginStartType}:           s.handleLoginStart,
		{client.Play, packets.PlayTeleportConfirmType}:   s.handleTeleportConfirm,
		{client.Play, packets.PlayChatMessageType}:       s.handleChatMessage,
		{client.Play, packets.PlayKeepAliveResponseType}: s.handleKeepAliveResponse,
	}
	return nil
}

func (s *Server) SetUpClient(c *client.Client) {
	c.PacketLogging = s.Config.Debugging.PacketLoggingEnabled
	if timeout := s.Config.Protocol.WriteTimeout; timeout > 0 {
		c.WriteTimeout = timeout
	}
}

// Handle dispatches f to the handler registered for the client's current
// state. Packets without a handler are logged and skipped.
func (s *Server) Handle(ctx context.Context, c *client.Client, f frame.Frame) error {
	state := c.State()
	if state == client.Unknown {
		state = client.Handshake
	}

	handler, ok := s.handlers[handlerKey{state, f.ID}]
	if !ok {
		c.Logger.Debugf("ignoring unknown packet 0x%02x in state %s", f.ID, state)
		return nil
	}

	buf := f.Buffer()
	if err := handler(ctx, c, buf); err != nil {
		return err
	}
	if buf.Remaining() > 0 {
		c.Logger.Debugf("ignoring %d trailing bytes of packet 0x%02x in state %s", buf.Remaining(), f.ID, state)
	}
	return nil
}

// decode reads pkt out of buf, naming the packet in the error.
func decode(buf *bytes.Buffer, pkt packets.Decoder, name string) error {
	if err := pkt.Decode(buf); err != nil {
		return fmt.Errorf("error decoding %s: %w", name, err)
	}
	return nil
}
