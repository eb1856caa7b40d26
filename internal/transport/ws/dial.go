package ws

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/omochice/endpoint-mux/internal/chat"
)

// Dial opens a client side WebSocket connection to url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}
	var reader io.Reader = conn
	if br != nil {
		// the server sent frames right after the handshake
		reader = br
	}
	return newConn(conn, reader, ws.StateClientSide), nil
}

// Dialer implements mux.Dialer with Dial.
type Dialer struct{}

// Dial implements mux.Dialer.
func (Dialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	return Dial(ctx, url)
}

// Accept upgrades an HTTP request to a server side WebSocket connection.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}
	return newConn(conn, rw.Reader, ws.StateServerSide), nil
}
