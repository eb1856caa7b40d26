// Package chat holds the server side of the multiplexed connection: the
// transport-agnostic Conn and the Hub of connected clients.
package chat

import "context"

// Conn abstracts a bidirectional, message oriented connection.
// It is implemented by the WebSocket transport for both the client and the
// server side.
type Conn interface {
	// Read reads a single message frame.
	// Returns io.EOF when connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single message frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
