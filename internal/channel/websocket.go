package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eaglebank/webclient/shared/events"
)

// Socket endpoints relative to the socket base URL.
const (
	WebSocketPath = "/socket/ws"
	LongPollPath  = "/socket/poll"
)

// WebSocket is the low latency transport.
type WebSocket struct {
	Dialer *websocket.Dialer
	Path   string
}

func NewWebSocket() *WebSocket {
	return &WebSocket{Dialer: websocket.DefaultDialer, Path: WebSocketPath}
}

func (w *WebSocket) Name() string { return "websocket" }

func (w *WebSocket) Dial(ctx context.Context, baseURL, token string) (Conn, error) {
	target, err := endpoint(baseURL, w.Path, true)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := w.Dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake rejected with %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
	once sync.Once
	err  error
}

func (c *wsConn) ReadFrame(context.Context) (events.Frame, error) {
	var f events.Frame
	err := c.conn.ReadJSON(&f)
	return f, err
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadlineSoon())
		c.err = c.conn.Close()
	})
	return c.err
}

// endpoint joins the socket base URL and path. With ws set the scheme is
// switched to ws or wss.
func endpoint(baseURL, path string, ws bool) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid socket url %q: %w", baseURL, err)
	}
	if ws {
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
	} else {
		switch u.Scheme {
		case "ws":
			u.Scheme = "http"
		case "wss":
			u.Scheme = "https"
		}
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
