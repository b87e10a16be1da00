package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pandora-mc/pandora/internal/core/bytes"
	"github.com/pandora-mc/pandora/internal/core/debug"
	"github.com/pandora-mc/pandora/internal/packets"
)

// DefaultQueueSize is the number of built frames a connection buffers before
// Send starts blocking.
const DefaultQueueSize = 100

// DefaultWriteTimeout bounds a single frame write to a peer that isn't reading.
const DefaultWriteTimeout = 30 * time.Second

// How long Close waits for queued frames to reach the peer.
const flushTimeout = 2 * time.Second

var (
	// ErrTransport wraps I/O failures on the underlying connection.
	ErrTransport = errors.New("transport error")
	// ErrClosed is returned by Send once the connection is shutting down.
	ErrClosed = errors.New("connection closed")
)

// Client represents a single game client connected to the server.
//
// Reads are performed by exactly one goroutine (the frontend's read loop).
// Writes from any goroutine go through Send, which hands complete frames to a
// single writer goroutine so frames are never interleaved on the wire.
type Client struct {
	id     uint32
	conn   net.Conn
	ipAddr string
	port   string

	mu       sync.RWMutex
	state    State
	username string
	uuid     uuid.UUID

	outbound   chan []byte
	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	startOnce  sync.Once
	closeOnce  sync.Once
	writerDone chan struct{}
	closeErr   error

	// Unix milliseconds of the last keep-alive answered by the client.
	lastKeepAlive atomic.Int64
	latency       atomic.Int64

	// Logger is scoped to this connection.
	Logger logrus.FieldLogger
	// PacketLogging dumps every outbound frame at debug level.
	PacketLogging bool
	// WriteTimeout is the deadline for writing one frame. A peer that stops
	// reading fails the write and the connection is torn down. Zero disables
	// it. It must be set before Start.
	WriteTimeout time.Duration
}

// NewClient wraps conn. The writer isn't running until Start is called, but
// frames may be queued with Send beforehand.
func NewClient(id uint32, conn net.Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	remote := conn.RemoteAddr().String()
	ipAddr, port, err := net.SplitHostPort(remote)
	if err != nil {
		ipAddr, port = remote, ""
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:           id,
		conn:         conn,
		ipAddr:       ipAddr,
		port:         port,
		state:        Unknown,
		outbound:     make(chan []byte, queueSize),
		ctx:          ctx,
		cancel:       cancel,
		writerDone:   make(chan struct{}),
		WriteTimeout: DefaultWriteTimeout,
	}
	c.Logger = logrus.StandardLogger().WithFields(logrus.Fields{
		"client_id": id,
		"remote":    remote,
	})
	c.lastKeepAlive.Store(time.Now().UnixMilli())
	return c
}

func (c *Client) ID() uint32     { return c.id }
func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// Context is cancelled when the connection starts closing. Goroutines scoped
// to the connection (such as the keep-alive scheduler) select on it.
func (c *Client) Context() context.Context { return c.ctx }

func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) SetState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// SetIdentity records the player behind the connection once login completes.
func (c *Client) SetIdentity(username string, id uuid.UUID) {
	c.mu.Lock()
	c.username = username
	c.uuid = id
	c.mu.Unlock()
}

func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) UUID() uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.uuid
}

// KeepAliveAnswered records a keep-alive response carrying the id sent at
// sentAt (Unix milliseconds).
func (c *Client) KeepAliveAnswered(sentAt int64) {
	now := time.Now().UnixMilli()
	c.lastKeepAlive.Store(now)
	if sentAt > 0 && sentAt <= now {
		c.latency.Store(now - sentAt)
	}
}

// LastKeepAlive returns when the client last answered a keep-alive, or when
// the connection was created if it never has.
func (c *Client) LastKeepAlive() time.Time {
	return time.UnixMilli(c.lastKeepAlive.Load())
}

// Latency is the round trip time measured by the most recent keep-alive.
func (c *Client) Latency() time.Duration {
	return time.Duration(c.latency.Load()) * time.Millisecond
}

// Read consumes the available bytes directly from the client's connection.
func (c *Client) Read(b []byte) (int, error) {
	return c.conn.Read(b)
}

// SetReadDeadline bounds the next reads from the connection. The zero time
// removes the deadline.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Start launches the writer goroutine. It is safe to call more than once.
func (c *Client) Start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.writeLoop()
	})
}

// Send queues a complete frame for delivery. It blocks while the queue is
// full and fails with ErrClosed once the connection is closing.
func (c *Client) Send(frame []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrClosed
	default:
	}

	select {
	case c.outbound <- frame:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

// SendPacket encodes pkt into a frame and queues it.
func (c *Client) SendPacket(pkt packets.Packet) error {
	buf := bytes.NewBuffer(nil)
	pkt.Encode(buf)
	return c.Send(buf.BuildFrame(pkt.ID()))
}

// Close shuts the connection down. Frames queued before the call are flushed
// to the peer (bounded by a write deadline) before the transport is closed.
// Only the first call has any effect.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.started.Load() {
			_ = c.conn.SetWriteDeadline(time.Now().Add(flushTimeout))
			<-c.writerDone
		}
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.closeErr = fmt.Errorf("%w: %v", ErrTransport, err)
		}
	})
	return c.closeErr
}

func (c *Client) writeLoop() {
	defer close(c.writerDone)

	for {
		select {
		case frame := <-c.outbound:
			if err := c.transmit(frame); err != nil {
				c.Logger.Errorf("failed to send to client: %v", err)
				c.cancel()
				// Unblocks the read loop so the frontend tears the connection down.
				_ = c.conn.Close()
				return
			}
		case <-c.ctx.Done():
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued without waiting for more.
func (c *Client) flush() {
	for {
		select {
		case frame := <-c.outbound:
			if err := c.transmit(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// transmit writes one frame with a single call, so it is never interleaved
// with another frame.
func (c *Client) transmit(frame []byte) error {
	if c.PacketLogging {
		debug.DumpFrame(c.Logger, "server", frame)
	}

	// Close sets the flush deadline once the connection is shutting down.
	if c.WriteTimeout > 0 && c.ctx.Err() == nil {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	debug.FramesSent.Inc()
	return nil
}
