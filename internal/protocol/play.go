package protocol

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pandora-mc/pandora/internal/core/bytes"
	"github.com/pandora-mc/pandora/internal/core/client"
	"github.com/pandora-mc/pandora/internal/core/world"
	"github.com/pandora-mc/pandora/internal/packets"
)

// Reason given to players that stop answering keep-alives.
const timedOutMessage = "Timed out"

// Teleport id of the initial position sent on join.
const spawnTeleportID = 1

// enterPlay sends everything the client needs to spawn into the world and
// then starts the keep-alive schedule for the connection.
func (s *Server) enterPlay(_ context.Context, c *client.Client) error {
	if err := s.sendJoinGame(c); err != nil {
		return err
	}
	if err := s.sendChunks(c); err != nil {
		return err
	}

	cfg := s.Config.Play
	if err := c.SendPacket(&packets.PlayerPositionAndLook{
		X:          cfg.SpawnX,
		Y:          cfg.SpawnY,
		Z:          cfg.SpawnZ,
		TeleportID: spawnTeleportID,
	}); err != nil {
		return err
	}

	go s.keepAlive(c)
	return nil
}

func (s *Server) sendJoinGame(c *client.Client) error {
	codec, err := s.World.DimensionCodec()
	if err != nil {
		return fmt.Errorf("error loading dimension codec: %w", err)
	}
	dimension, err := s.World.Dimension()
	if err != nil {
		return fmt.Errorf("error loading dimension: %w", err)
	}

	cfg := s.Config.Play
	return c.SendPacket(&packets.JoinGame{
		EntityID:            int32(c.ID() & math.MaxInt32),
		Hardcore:            cfg.Hardcore,
		GameMode:            uint8(cfg.GameMode),
		PreviousGameMode:    -1,
		WorldNames:          []string{cfg.WorldName},
		DimensionCodec:      codec,
		Dimension:           dimension,
		WorldName:           cfg.WorldName,
		MaxPlayers:          int32(s.Config.MaxPlayers),
		ViewDistance:        int32(cfg.ViewDistance),
		EnableRespawnScreen: true,
	})
}

// sendChunks sends every chunk column within the configured radius of the origin.
func (s *Server) sendChunks(c *client.Client) error {
	radius := int32(s.Config.Play.ChunkRadius)
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			blob, err := s.World.Chunk(x, z)
			if err != nil {
				return fmt.Errorf("error loading chunk %d,%d: %w", x, z, err)
			}
			body, err := world.StripChunkHeader(blob)
			if err != nil {
				return fmt.Errorf("error loading chunk %d,%d: %w", x, z, err)
			}
			if err := c.SendPacket(&packets.ChunkData{X: x, Z: z, Data: body}); err != nil {
				return err
			}
		}
	}
	return nil
}

// keepAlive runs until the connection closes, sending a keep-alive every
// interval. Its id is the send time in Unix milliseconds so the response
// doubles as a latency measurement. A client that hasn't answered within the
// timeout is disconnected.
func (s *Server) keepAlive(c *client.Client) {
	interval := s.Config.Play.KeepAliveInterval
	timeout := s.Config.Play.KeepAliveTimeout

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.Context().Done():
			return
		case now := <-ticker.C:
			if timeout > 0 && now.Sub(c.LastKeepAlive()) > timeout {
				c.Logger.Infof("disconnecting %s: no keep-alive response in %v", c.Username(), timeout)
				_ = c.SendPacket(&packets.Disconnect{
					Reason: packets.ChatComponent{Text: timedOutMessage},
				})
				if err := c.Close(); err != nil {
					c.Logger.Warnf("failed to close client connection: %s", err)
				}
				return
			}

			if err := c.SendPacket(&packets.KeepAlive{KeepAliveID: now.UnixMilli()}); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleTeleportConfirm(_ context.Context, c *client.Client, buf *bytes.Buffer) error {
	var pkt packets.TeleportConfirm
	if err := decode(buf, &pkt, "teleport confirm"); err != nil {
		return err
	}
	c.Logger.Debugf("teleport %d confirmed", pkt.TeleportID)
	return nil
}

// Chat is only logged; nothing is relayed to other players.
func (s *Server) handleChatMessage(_ context.Context, c *client.Client, buf *bytes.Buffer) error {
	var pkt packets.ChatMessage
	if err := decode(buf, &pkt, "chat message"); err != nil {
		return err
	}
	c.Logger.Infof("<%s> %s", c.Username(), pkt.Message)
	return nil
}

func (s *Server) handleKeepAliveResponse(_ context.Context, c *client.Client, buf *bytes.Buffer) error {
	var pkt packets.KeepAliveResponse
	if err := decode(buf, &pkt, "keep-alive response"); err != nil {
		return err
	}
	c.KeepAliveAnswered(pkt.KeepAliveID)
	c.Logger.Debugf("keep-alive answered, latency %v", c.Latency())
	return nil
}
