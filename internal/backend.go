package internal

import (
	"context"

	"github.com/pandora-mc/pandora/internal/core/client"
	"github.com/pandora-mc/pandora/internal/core/frame"
)

// Backend is an interface for a server that handles the packets of the
// clients connected to one frontend.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient performs any initialization on the Client needed to be
	// able to begin the session. It runs before the client's writer starts.
	SetUpClient(c *client.Client)

	// Handle is the main entry point for processing client packets. It's
	// called once per frame, in the order frames arrive, and is responsible
	// for sending any responses. A returned error closes the connection.
	Handle(ctx context.Context, c *client.Client, f frame.Frame) error
}
