package protocol

import (
	"context"
	"fmt"

	"github.com/pandora-mc/pandora/internal/core/bytes"
	"github.com/pandora-mc/pandora/internal/core/client"
	"github.com/pandora-mc/pandora/internal/packets"
)

// Reason given to players turned away at login.
const serverFullMessage = "The server is full!"

func (s *Server) handleHandshake(_ context.Context, c *client.Client, buf *bytes.Buffer) error {
	var pkt packets.Handshake
	if err := decode(buf, &pkt, "handshake"); err != nil {
		return err
	}

	if int(pkt.ProtocolVersion) != s.Config.Protocol.Version {
		c.Logger.Debugf("client uses protocol %d, server speaks %d", pkt.ProtocolVersion, s.Config.Protocol.Version)
	}

	switch pkt.NextState {
	case packets.NextStateStatus:
		c.SetState(client.Status)
	case packets.NextStateLogin:
		c.SetState(client.Login)
	default:
		return fmt.Errorf("%w: handshake requested next state %d", ErrIllegalStateTransition, pkt.NextState)
	}
	return nil
}

func (s *Server) handleStatusRequest(_ context.Context, c *client.Client, buf *bytes.Buffer) error {
	var pkt packets.StatusRequest
	if err := decode(buf, &pkt, "status request"); err != nil {
		return err
	}

	return c.SendPacket(&packets.StatusResponse{Status: s.serverStatus()})
}

func (s *Server) serverStatus() packets.ServerStatus {
	return packets.ServerStatus{
		Version: packets.StatusVersion{
			Name:     s.Config.Protocol.VersionName,
			Protocol: s.Config.Protocol.Version,
		},
		Players: packets.StatusPlayers{
			Max:    s.Config.MaxPlayers,
			Online: s.Registry.CountInState(client.Play),
		},
		Description: packets.ChatComponent{Text: s.Config.MOTD},
	}
}

// The nonce is echoed back untouched.
func (s *Server) handlePing(_ context.Context, c *client.Client, buf *bytes.Buffer) error {
	var ping packets.Ping
	if err := decode(buf, &ping, "ping"); err != nil {
		return err
	}
	return c.SendPacket(&packets.Pong{Payload: ping.Payload})
}

func (s *Server) handleLoginStart(ctx context.Context, c *client.Client, buf *bytes.Buffer) error {
	var pkt packets.LoginStart
	if err := decode(buf, &pkt, "login start"); err != nil {
		return err
	}

	if s.Registry.CountInState(client.Play) >= s.Config.MaxPlayers {
		c.Logger.Infof("rejected login from %s: server is full", pkt.Username)
		if err := c.SendPacket(&packets.LoginDisconnect{
			Reason: packets.ChatComponent{Text: serverFullMessage},
		}); err != nil {
			return err
		}
		return fmt.Errorf("%w: server is full", ErrDisconnected)
	}

	id := packets.OfflineUUID(pkt.Username)
	c.SetIdentity(pkt.Username, id)
	if err := c.SendPacket(&packets.LoginSuccess{UUID: id, Username: pkt.Username}); err != nil {
		return err
	}

	c.SetState(client.Play)
	c.Logger.Infof("%s logged in with uuid %s", pkt.Username, id)

	return s.enterPlay(ctx, c)
}
