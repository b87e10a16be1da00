package protocol

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/pandora-mc/pandora/internal/core"
	"github.com/pandora-mc/pandora/internal/core/bytes"
	"github.com/pandora-mc/pandora/internal/core/client"
	"github.com/pandora-mc/pandora/internal/core/frame"
	"github.com/pandora-mc/pandora/internal/core/world"
	"github.com/pandora-mc/pandora/internal/packets"
)

// testWorld serves a fixed codec and a chunk for every coordinate whose body
// is the two coordinates as bytes.
type testWorld struct {
	codec []byte
	err   error
}

func (w *testWorld) DimensionCodec() ([]byte, error) { return w.codec, w.err }
func (w *testWorld) Dimension() ([]byte, error)      { return nil, nil }

func (w *testWorld) Chunk(x, z int32) ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return capturedChunk(x, z, chunkBody(x, z)), nil
}

func chunkBody(x, z int32) []byte {
	return []byte{byte(x), byte(z), 0xcc}
}

// capturedChunk builds a blob the way one is captured off the wire.
func capturedChunk(x, z int32, body []byte) []byte {
	buf := bytes.NewBuffer(nil)
	buf.WriteInt32(x)
	buf.WriteInt32(z)
	buf.WriteBytes(body)
	return buf.BuildFrame(packets.PlayChunkDataType)
}

func testConfig() *core.Config {
	return &core.Config{
		MaxPlayers: 20,
		MOTD:       "A Minecraft Server",
		Protocol: core.ProtocolConfig{
			VersionName:   "1.16.5",
			Version:       754,
			MaxFrameSize:  frame.DefaultMaxSize,
			SendQueueSize: client.DefaultQueueSize,
		},
		Play: core.PlayConfig{
			ViewDistance:      10,
			ChunkRadius:       1,
			GameMode:          1,
			WorldName:         "minecraft:overworld",
			SpawnY:            64,
			KeepAliveInterval: time.Hour,
			KeepAliveTimeout:  time.Hour,
		},
	}
}

func newTestServer(t *testing.T, cfg *core.Config) *Server {
	logger, _ := test.NewNullLogger()
	s := &Server{
		Name:     "GAME",
		Config:   cfg,
		Logger:   logger,
		Registry: client.NewRegistry(cfg.Protocol.SendQueueSize),
		World:    &testWorld{codec: []byte{0x0a, 0x00, 0x00}},
	}
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() returned an unexpected error: %s", err)
	}
	return s
}

// peer is the client end of a connection to the server.
type peer struct {
	conn    net.Conn
	decoder *frame.Decoder
	pending []frame.Frame
}

// connect registers a new connection with s and returns both ends of it.
func connect(t *testing.T, s *Server) (*client.Client, *peer) {
	serverConn, clientConn := net.Pipe()
	c := s.Registry.Register(serverConn)
	s.SetUpClient(c)
	c.Start()

	t.Cleanup(func() {
		clientConn.Close()
		c.Close()
		s.Registry.Remove(c.ID())
	})
	return c, &peer{conn: clientConn, decoder: frame.NewDecoder(0)}
}

func (p *peer) next(t *testing.T) frame.Frame {
	t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	scratch := make([]byte, 4096)
	for len(p.pending) == 0 {
		frames, err := p.decoder.ReadFrom(p.conn, scratch)
		if err != nil {
			t.Fatalf("error reading from server: %s", err)
		}
		p.pending = frames
	}
	f := p.pending[0]
	p.pending = p.pending[1:]
	return f
}

// nextOfType skips frames until one with the given id arrives.
func (p *peer) nextOfType(t *testing.T, id int32) frame.Frame {
	t.Helper()
	for {
		if f := p.next(t); f.ID == id {
			return f
		}
	}
}

func encode(pkt packets.Packet) frame.Frame {
	buf := bytes.NewBuffer(nil)
	pkt.Encode(buf)
	return frame.Frame{ID: pkt.ID(), Payload: buf.Bytes()}
}

func TestServer_Init(t *testing.T) {
	tests := []struct {
		name   string
		modify func(s *Server)
	}{
		{"no registry", func(s *Server) { s.Registry = nil }},
		{"no world", func(s *Server) { s.World = nil }},
		{"zero keep-alive interval", func(s *Server) { s.Config.Play.KeepAliveInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{
				Config:   testConfig(),
				Registry: client.NewRegistry(0),
				World:    &testWorld{},
			}
			tt.modify(s)
			if err := s.Init(context.Background()); err == nil {
				t.Errorf("Init() did not return an error")
			}
		})
	}
}

func TestHandle_Handshake(t *testing.T) {
	tests := []struct {
		nextState int32
		expected  client.State
		err       error
	}{
		{packets.NextStateStatus, client.Status, nil},
		{packets.NextStateLogin, client.Login, nil},
		{3, client.Unknown, ErrIllegalStateTransition},
		{0, client.Unknown, ErrIllegalStateTransition},
	}
	s := newTestServer(t, testConfig())
	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			c, _ := connect(t, s)
			err := s.Handle(context.Background(), c, encode(&packets.Handshake{
				ProtocolVersion: 754,
				ServerAddress:   "localhost",
				ServerPort:      25565,
				NextState:       tt.nextState,
			}))
			if !errors.Is(err, tt.err) {
				t.Fatalf("Handle() error want = %v, got = %v", tt.err, err)
			}
			if c.State() != tt.expected {
				t.Errorf("State() want = %v, got = %v", tt.expected, c.State())
			}
		})
	}
}

func TestHandle_Truncated(t *testing.T) {
	s := newTestServer(t, testConfig())
	c, _ := connect(t, s)

	f := encode(&packets.Handshake{ProtocolVersion: 754, ServerAddress: "localhost", ServerPort: 25565, NextState: 1})
	f.Payload = f.Payload[:len(f.Payload)-2]

	if err := s.Handle(context.Background(), c, f); !errors.Is(err, bytes.ErrBufferUnderflow) {
		t.Errorf("Handle() error want = %v, got = %v", bytes.ErrBufferUnderflow, err)
	}
	if c.State() != client.Unknown {
		t.Errorf("State() changed to %v after a truncated handshake", c.State())
	}
}

func TestHandle_UnknownPacket(t *testing.T) {
	s := newTestServer(t, testConfig())
	c, _ := connect(t, s)

	for _, state := range []client.State{client.Unknown, client.Status, client.Login, client.Play} {
		c.SetState(state)
		if err := s.Handle(context.Background(), c, frame.Frame{ID: 0x7f, Payload: []byte{1, 2, 3}}); err != nil {
			t.Errorf("Handle() of an unknown packet in %v returned %v", state, err)
		}
		if c.State() != state {
			t.Errorf("State() want = %v, got = %v", state, c.State())
		}
	}
}

func TestHandle_StatusRequest(t *testing.T) {
	s := newTestServer(t, testConfig())
	player, _ := connect(t, s)
	player.SetState(client.Play)
	// Still logging in, so not counted.
	joining, _ := connect(t, s)
	joining.SetState(client.Login)

	c, p := connect(t, s)
	c.SetState(client.Status)
	// Trailing bytes are ignored.
	if err := s.Handle(context.Background(), c, frame.Frame{ID: packets.StatusRequestType, Payload: []byte{0xff}}); err != nil {
		t.Fatalf("Handle() returned an unexpected error: %s", err)
	}

	f := p.next(t)
	if f.ID != packets.StatusResponseType {
		t.Fatalf("response id want = %v, got = %v", packets.StatusResponseType, f.ID)
	}
	var response packets.StatusResponse
	if err := response.Decode(f.Buffer()); err != nil {
		t.Fatal(err)
	}

	expected := packets.ServerStatus{
		Version:     packets.StatusVersion{Name: "1.16.5", Protocol: 754},
		Players:     packets.StatusPlayers{Max: 20, Online: 1},
		Description: packets.ChatComponent{Text: "A Minecraft Server"},
	}
	if diff := cmp.Diff(expected, response.Status); diff != "" {
		t.Errorf("unexpected status response; diff:\n%s", diff)
	}
}

func TestHandle_Ping(t *testing.T) {
	s := newTestServer(t, testConfig())
	c, p := connect(t, s)
	c.SetState(client.Status)

	nonce := [8]byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	if err := s.Handle(context.Background(), c, encode(&packets.Ping{Payload: nonce})); err != nil {
		t.Fatalf("Handle() returned an unexpected error: %s", err)
	}

	f := p.next(t)
	if f.ID != packets.StatusPongType {
		t.Fatalf("response id want = %v, got = %v", packets.StatusPongType, f.ID)
	}
	if diff := cmp.Diff(nonce[:], f.Payload); diff != "" {
		t.Errorf("pong did not echo the nonce; diff:\n%s", diff)
	}
}

func TestHandle_LoginStart(t *testing.T) {
	s := newTestServer(t, testConfig())
	c, p := connect(t, s)
	c.SetState(client.Login)

	if err := s.Handle(context.Background(), c, encode(&packets.LoginStart{Username: "Steve"})); err != nil {
		t.Fatalf("Handle() returned an unexpected error: %s", err)
	}

	f := p.next(t)
	if f.ID != packets.LoginSuccessType {
		t.Fatalf("response id want = %v, got = %v", packets.LoginSuccessType, f.ID)
	}
	var success packets.LoginSuccess
	if err := success.Decode(f.Buffer()); err != nil {
		t.Fatal(err)
	}
	if success.Username != "Steve" || success.UUID.String() != "5627dd98-e6be-3c21-b8a8-e92344183641" {
		t.Errorf("unexpected login success: %+v", success)
	}

	if f := p.next(t); f.ID != packets.PlayJoinGameType {
		t.Fatalf("expected join game, got packet 0x%02x", f.ID)
	}

	var chunks [][2]int32
	for i := 0; i < 9; i++ {
		f := p.next(t)
		if f.ID != packets.PlayChunkDataType {
			t.Fatalf("expected chunk data, got packet 0x%02x", f.ID)
		}
		var chunk packets.ChunkData
		if err := chunk.Decode(f.Buffer()); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(chunkBody(chunk.X, chunk.Z), chunk.Data); diff != "" {
			t.Errorf("chunk %d,%d carries the wrong body; diff:\n%s", chunk.X, chunk.Z, diff)
		}
		chunks = append(chunks, [2]int32{chunk.X, chunk.Z})
	}
	expectedChunks := [][2]int32{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 0}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
	if diff := cmp.Diff(expectedChunks, chunks); diff != "" {
		t.Errorf("unexpected chunk coordinates; diff:\n%s", diff)
	}

	f = p.next(t)
	if f.ID != packets.PlayPlayerPositionAndLookType {
		t.Fatalf("expected player position and look, got packet 0x%02x", f.ID)
	}
	var position packets.PlayerPositionAndLook
	if err := position.Decode(f.Buffer()); err != nil {
		t.Fatal(err)
	}
	if position.Y != 64 {
		t.Errorf("spawn Y want = %v, got = %v", 64, position.Y)
	}

	if c.State() != client.Play {
		t.Errorf("State() want = %v, got = %v", client.Play, c.State())
	}
	if c.Username() != "Steve" {
		t.Errorf("Username() want = %v, got = %v", "Steve", c.Username())
	}
}

func TestHandle_LoginStartInvalidUsername(t *testing.T) {
	s := newTestServer(t, testConfig())
	c, _ := connect(t, s)
	c.SetState(client.Login)

	buf := bytes.NewBuffer(nil)
	buf.WriteString("ThisNameIsFarTooLong")
	err := s.Handle(context.Background(), c, frame.Frame{ID: packets.LoginStartType, Payload: buf.Bytes()})
	if !errors.Is(err, bytes.ErrInvalidEncoding) {
		t.Errorf("Handle() error want = %v, got = %v", bytes.ErrInvalidEncoding, err)
	}
	if c.State() != client.Login {
		t.Errorf("State() want = %v, got = %v", client.Login, c.State())
	}
}

func TestHandle_LoginStartServerFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 1
	s := newTestServer(t, cfg)

	player, _ := connect(t, s)
	player.SetState(client.Play)
	// Still logging in, so not counted.
	joining, _ := connect(t, s)
	joining.SetState(client.Login)

	c, p := connect(t, s)
	c.SetState(client.Login)
	err := s.Handle(context.Background(), c, encode(&packets.LoginStart{Username: "Alex"}))
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("Handle() error want = %v, got = %v", ErrDisconnected, err)
	}

	f := p.next(t)
	if f.ID != packets.LoginDisconnectType {
		t.Fatalf("response id want = %v, got = %v", packets.LoginDisconnectType, f.ID)
	}
	var disconnect packets.LoginDisconnect
	if err := disconnect.Decode(f.Buffer()); err != nil {
		t.Fatal(err)
	}
	if disconnect.Reason.Text != serverFullMessage {
		t.Errorf("disconnect reason want = %q, got = %q", serverFullMessage, disconnect.Reason.Text)
	}
	if c.State() != client.Login {
		t.Errorf("State() want = %v, got = %v", client.Login, c.State())
	}
}

func TestHandle_LoginStartPeerNotReading(t *testing.T) {
	cfg := testConfig()
	cfg.Protocol.SendQueueSize = 4
	cfg.Protocol.WriteTimeout = 100 * time.Millisecond
	cfg.Play.ChunkRadius = 2
	s := newTestServer(t, cfg)
	// The peer never reads, so the chunks can't all be queued.
	c, _ := connect(t, s)
	c.SetState(client.Login)

	errs := make(chan error, 1)
	go func() {
		errs <- s.Handle(context.Background(), c, encode(&packets.LoginStart{Username: "Steve"}))
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, client.ErrClosed) {
			t.Errorf("Handle() error want = %v, got = %v", client.ErrClosed, err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Handle() is still blocked on a peer that isn't reading")
	}
	if c.Context().Err() == nil {
		t.Errorf("connection was not closed after the write timed out")
	}
}

func TestHandle_LoginStartWorldError(t *testing.T) {
	s := newTestServer(t, testConfig())
	s.World = &testWorld{err: world.ErrNotFound}
	c, _ := connect(t, s)
	c.SetState(client.Login)

	err := s.Handle(context.Background(), c, encode(&packets.LoginStart{Username: "Steve"}))
	if !errors.Is(err, world.ErrNotFound) {
		t.Errorf("Handle() error want = %v, got = %v", world.ErrNotFound, err)
	}
}

func TestHandle_Play(t *testing.T) {
	s := newTestServer(t, testConfig())
	c, _ := connect(t, s)
	c.SetState(client.Play)

	tests := []struct {
		name string
		f    frame.Frame
		err  error
	}{
		{"teleport confirm", encode(&packets.TeleportConfirm{TeleportID: spawnTeleportID}), nil},
		{"chat", encode(&packets.ChatMessage{Message: "hello"}), nil},
		{"multibyte chat", encode(&packets.ChatMessage{Message: strings.Repeat("日", packets.MaxChatMessageLen)}), nil},
		{"chat too long", encode(&packets.ChatMessage{Message: strings.Repeat("日", packets.MaxChatMessageLen+1)}), bytes.ErrInvalidEncoding},
		{"keep-alive response", encode(&packets.KeepAliveResponse{KeepAliveID: time.Now().UnixMilli()}), nil},
		{"truncated keep-alive response", frame.Frame{ID: packets.PlayKeepAliveResponseType, Payload: []byte{1, 2}}, bytes.ErrBufferUnderflow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Handle(context.Background(), c, tt.f); !errors.Is(err, tt.err) {
				t.Errorf("Handle() error want = %v, got = %v", tt.err, err)
			}
		})
	}
}

func login(t *testing.T, s *Server, c *client.Client, p *peer) {
	t.Helper()
	c.SetState(client.Login)
	if err := s.Handle(context.Background(), c, encode(&packets.LoginStart{Username: "Steve"})); err != nil {
		t.Fatalf("Handle() returned an unexpected error: %s", err)
	}
	p.nextOfType(t, packets.PlayPlayerPositionAndLookType)
}

func TestKeepAlive(t *testing.T) {
	cfg := testConfig()
	cfg.Play.KeepAliveInterval = 10 * time.Millisecond
	s := newTestServer(t, cfg)
	c, p := connect(t, s)
	login(t, s, c, p)

	before := c.LastKeepAlive()
	f := p.nextOfType(t, packets.PlayKeepAliveType)
	var keepAlive packets.KeepAlive
	if err := keepAlive.Decode(f.Buffer()); err != nil {
		t.Fatal(err)
	}
	if sent := time.UnixMilli(keepAlive.KeepAliveID); time.Since(sent) > time.Minute {
		t.Errorf("keep-alive id %d is not a recent timestamp", keepAlive.KeepAliveID)
	}

	time.Sleep(5 * time.Millisecond)
	response := encode(&packets.KeepAliveResponse{KeepAliveID: keepAlive.KeepAliveID})
	if err := s.Handle(context.Background(), c, response); err != nil {
		t.Fatalf("Handle() returned an unexpected error: %s", err)
	}
	if !c.LastKeepAlive().After(before) {
		t.Errorf("LastKeepAlive() was not updated by the response")
	}
}

func TestKeepAlive_Timeout(t *testing.T) {
	cfg := testConfig()
	cfg.Play.KeepAliveInterval = 10 * time.Millisecond
	cfg.Play.KeepAliveTimeout = 30 * time.Millisecond
	s := newTestServer(t, cfg)
	c, p := connect(t, s)
	login(t, s, c, p)

	f := p.nextOfType(t, packets.PlayDisconnectType)
	var disconnect packets.Disconnect
	if err := disconnect.Decode(f.Buffer()); err != nil {
		t.Fatal(err)
	}
	if disconnect.Reason.Text != timedOutMessage {
		t.Errorf("disconnect reason want = %q, got = %q", timedOutMessage, disconnect.Reason.Text)
	}

	select {
	case <-c.Context().Done():
	case <-time.After(2 * time.Second):
		t.Errorf("connection was not closed after the keep-alive timeout")
	}
}
