// Package ws provides the WebSocket transport for both ends of the
// multiplexed connection, built on gobwas/ws.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts a WebSocket net.Conn to chat.Conn.
// Frames are sent as text since the payload is JSON.
type Conn struct {
	conn   net.Conn
	reader io.Reader
	state  ws.State

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConn(conn net.Conn, reader io.Reader, state ws.State) *Conn {
	return &Conn{conn: conn, reader: reader, state: state}
}

// lockedWriter serialises control frame replies written by the reader with
// data frames written by Write.
type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.conn.Write(p)
}

// Read implements chat.Conn.
// Control frames are answered transparently. A close frame from the peer is
// reported as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	rw := struct {
		io.Reader
		io.Writer
	}{c.reader, lockedWriter{c}}

	data, _, err := wsutil.ReadData(rw, c.state)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteMessage(c.conn, c.state, ws.OpText, data)
}

// Close implements chat.Conn.
// A normal closure frame is sent before the socket is closed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, body)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
