package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pandora-mc/pandora/internal/core"
	"github.com/pandora-mc/pandora/internal/core/bytes"
	"github.com/pandora-mc/pandora/internal/core/client"
	pandoradebug "github.com/pandora-mc/pandora/internal/core/debug"
	"github.com/pandora-mc/pandora/internal/core/frame"
	"github.com/pandora-mc/pandora/internal/protocol"
)

// How often the accept loop checks whether a connection slot has opened up.
const connectionPollInterval = 100 * time.Millisecond

// frontend implements the concurrent client connection logic.
//
// Data is read from any connected clients, split into frames and passed to a
// backend instance, abstracting the lower level connection details away from
// the Backends.
type frontend struct {
	Address  string
	Backend  Backend
	Config   *core.Config
	Logger   *logrus.Logger
	Registry *client.Registry

	socket *net.TCPListener
}

// Start initializes the server backend and opens a TCP socket for the specified server.
// A blocking loop for accepting client connections is spun off in its own goroutine and
// added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %w", f.Backend.Identifier(), err)
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %w", f.Address, err)
	}
	f.socket = socket

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// Addr returns the address the frontend is listening on once started.
func (f *frontend) Addr() net.Addr {
	return f.socket.Addr()
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address: %w", err)
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %w", err)
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Infof("[%s] waiting for connections on %v", f.Backend.Identifier(), socket.Addr())

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for f.Registry.Len() >= f.Config.MaxConnections {
				select {
				case <-ctx.Done():
					return
				case <-time.After(connectionPollInterval):
				}
			}

			connection, err := socket.AcceptTCP()
			if errors.Is(err, net.ErrClosed) {
				return
			} else if err != nil {
				f.Logger.Warnf("failed to accept connection: %s", err)
				continue
			}

			select {
			case connections <- connection:
			case <-ctx.Done():
				_ = connection.Close()
				return
			}
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection := <-connections:
			clientWg.Add(1)
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	if err := socket.Close(); err != nil {
		f.Logger.Warnf("[%s] failed to close socket: %s", f.Backend.Identifier(), err)
	}
	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient registers the connection and moves into the packet processing
// loop, which only returns once the connection has been torn down.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := f.Registry.Register(connection)
	c.Logger = f.Logger.WithFields(logrus.Fields{
		"server":    f.Backend.Identifier(),
		"client_id": c.ID(),
		"remote":    connection.RemoteAddr().String(),
	})
	f.Backend.SetUpClient(c)
	c.Start()

	pandoradebug.ConnectionsAccepted.Inc()
	pandoradebug.ActiveConnections.Inc()
	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())

	// Shutting the server down closes the connection, which ends the read loop.
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	f.processPackets(ctx, c)
}

// processPackets starts a blocking loop dedicated to reading data sent from
// a game client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	decoder := frame.NewDecoder(f.Config.Protocol.MaxFrameSize)
	scratch := make([]byte, 2048)

	for {
		if err := f.setIdleDeadline(c); err != nil {
			f.logConnectionError(c, fmt.Errorf("%w: %v", client.ErrTransport, err))
			return
		}

		// Frames that arrived ahead of a read error are still handled.
		frames, err := decoder.ReadFrom(c, scratch)

		for _, fr := range frames {
			pandoradebug.FramesReceived.WithLabelValues(c.State().String()).Inc()
			if f.Config.Debugging.PacketLoggingEnabled {
				pandoradebug.DumpFrame(c.Logger, "client", frame.Build(fr.ID, fr.Payload))
			}

			if herr := f.Backend.Handle(ctx, c, fr); herr != nil {
				f.logConnectionError(c, herr)
				return
			}
		}

		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				pandoradebug.ConnectionErrors.WithLabelValues(pandoradebug.ErrorKindIdle).Inc()
				c.Logger.Infof("closing connection idle in %s state", c.State())
				return
			}
			if errors.Is(err, io.ErrUnexpectedEOF) || isNetworkError(err) {
				err = fmt.Errorf("%w: %v", client.ErrTransport, err)
			}
			f.logConnectionError(c, err)
			return
		}
	}
}

// setIdleDeadline limits how long the next frame may take to arrive until the
// connection reaches the play state, where keep-alives detect dead peers.
func (f *frontend) setIdleDeadline(c *client.Client) error {
	var deadline time.Time
	if idle := f.Config.Protocol.IdleTimeout; idle > 0 && c.State() != client.Play {
		deadline = time.Now().Add(idle)
	}
	return c.SetReadDeadline(deadline)
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, net.ErrClosed)
}

// Errors caused by data the client sent.
var protocolErrors = []error{
	bytes.ErrMalformedVarInt,
	bytes.ErrBufferUnderflow,
	bytes.ErrInvalidEncoding,
	frame.ErrFrameTooLarge,
	frame.ErrMalformedFrame,
	protocol.ErrIllegalStateTransition,
}

// logConnectionError reports why a connection is being torn down at a level
// matching the cause.
func (f *frontend) logConnectionError(c *client.Client, err error) {
	for _, protocolErr := range protocolErrors {
		if errors.Is(err, protocolErr) {
			pandoradebug.ConnectionErrors.WithLabelValues(pandoradebug.ErrorKindProtocol).Inc()
			c.Logger.Warnf("closing connection after protocol violation: %s", err)
			return
		}
	}

	switch {
	case errors.Is(err, io.EOF):
		c.Logger.Info("client closed the connection")
	case errors.Is(err, protocol.ErrDisconnected):
		c.Logger.Infof("closing connection: %s", err)
	case c.Context().Err() != nil:
		// The connection was closed from our side, e.g. on shutdown or a
		// keep-alive timeout, which is what ended the read.
		c.Logger.Debugf("read ended after close: %s", err)
	case errors.Is(err, client.ErrTransport):
		pandoradebug.ConnectionErrors.WithLabelValues(pandoradebug.ErrorKindTransport).Inc()
		c.Logger.Errorf("error in client communication: %s", err)
	default:
		c.Logger.Errorf("error handling client packet: %s", err)
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, disconnects the
// client, and removes them from the registry regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		pandoradebug.ConnectionErrors.WithLabelValues(pandoradebug.ErrorKindPanic).Inc()
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	if err := c.Close(); err != nil {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	if name := c.Username(); name != "" {
		c.Logger.WithFields(logrus.Fields{"player": name, "uuid": c.UUID()}).Info("player left")
	}

	if f.Registry.Remove(c.ID()) {
		pandoradebug.ActiveConnections.Dec()
	}

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}
