// Package ws provides the WebSocket transport for the relay using
// gobwas/ws on the server side.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	gobwas "github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn adapts an upgraded gobwas/ws connection to chat.Conn.
type Conn struct {
	conn    net.Conn
	writeMu sync.Mutex
}

// NewConn wraps an already-upgraded server connection.
func NewConn(conn net.Conn) *Conn {
	return &Conn{conn: conn}
}

// Read implements chat.Conn.
// Reads the next text frame; close frames surface as io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	data, err := wsutil.ReadClientText(c.conn)
	if err != nil {
		var closed wsutil.ClosedError
		if errors.As(err, &closed) || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

// Write implements chat.Conn.
// Writes a text frame to the connection.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerText(c.conn, data)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = wsutil.WriteServerMessage(c.conn, gobwas.OpClose, nil)
	c.writeMu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
