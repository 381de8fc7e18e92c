package stream

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// maxMessageBytes bounds a single stream message.
const maxMessageBytes = 1 << 20

// Conn is one open stream connection.
type Conn interface {
	// Read blocks until the next message arrives, the connection closes,
	// or ctx is done.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens stream connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the metrics stream over a websocket.
type WebsocketDialer struct {
	// Header is sent with the upgrade request (e.g. Authorization).
	Header http.Header
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: d.Header})
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(maxMessageBytes)
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	return data, err
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}
