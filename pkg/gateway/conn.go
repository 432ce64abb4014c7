package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/accord-dev/accord/pkg/protocol"
)

// Conn is one gateway connection. The production implementation wraps a
// WebSocket; tests substitute scripted connections.
//
// ReadMessage is called from a single goroutine. WriteMessage and Close may
// be called concurrently with reads and with each other.
type Conn interface {
	// ReadMessage returns the next raw message, blocking until one arrives,
	// the connection fails, or Close is called.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one raw message.
	WriteMessage(data []byte) error

	// Close tears the connection down, unblocking any pending read.
	Close() error
}

// Dialer establishes gateway connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// wsDialer is the gorilla/websocket-backed Dialer.
type wsDialer struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
}

func (d *wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.handshakeTimeout,
	}
	c, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &wsConn{c: c, writeTimeout: d.writeTimeout}, nil
}

// wsConn adapts *websocket.Conn to the Conn interface.
type wsConn struct {
	c            *websocket.Conn
	writeTimeout time.Duration
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	return data, err
}

func (w *wsConn) WriteMessage(data []byte) error {
	if w.writeTimeout > 0 {
		w.c.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	}
	return w.c.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Close() error {
	// Best effort close frame; the peer may already be gone.
	w.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.c.Close()
}

// closeCode extracts the platform close code from a read error, if the
// connection ended with a close frame.
func closeCode(err error) (protocol.CloseCode, bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return protocol.CloseCode(ce.Code), true
	}
	return 0, false
}
