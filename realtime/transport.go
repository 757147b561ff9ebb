package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
	maxFrameSize     = 16 << 20 // audio frames carry whole recordings
)

// Transport is one physical duplex connection carrying text frames.
type Transport interface {
	// ReadFrame blocks until a frame arrives or the transport fails.
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	Close() error
}

// Dialer opens transports.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

// WebSocketDialer dials gorilla websocket connections.
type WebSocketDialer struct {
	Header http.Header
}

func (d WebSocketDialer) Dial(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteFrame(data []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	// Best effort; the peer may already be gone.
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
