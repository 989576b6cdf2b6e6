package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// wsConn carries one JSON object per WebSocket text frame.
type wsConn struct {
	conn         *websocket.Conn
	addr         string
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketConn wraps an upgraded WebSocket connection so a Session can run over it.
func NewWebSocketConn(conn *websocket.Conn, addr string, cfg Config) Conn {
	cfg = sanitizeConfig(cfg)
	conn.SetReadLimit(cfg.MaxMessageSize)
	// Sessions have no idle timeout; drop any deadline left by the HTTP server.
	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	return &wsConn{
		conn:         conn,
		addr:         addr,
		writeTimeout: cfg.WriteTimeout,
	}
}

func (c *wsConn) ReadCommand() (protocol.Command, error) {
	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		return protocol.Command{}, err
	}
	if messageType != websocket.TextMessage {
		return protocol.Command{}, fmt.Errorf("unsupported websocket frame type %d", messageType)
	}

	if !utf8.Valid(data) {
		return protocol.Command{}, fmt.Errorf("malformed frame: %w", protocol.ErrInvalidUTF8)
	}

	var cmd protocol.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return protocol.Command{}, fmt.Errorf("malformed frame: %w", err)
	}
	return cmd, nil
}

func (c *wsConn) WriteEvent(ev protocol.Event) error {
	data, err := protocol.Marshal(ev)
	if err != nil {
		return err
	}
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) RemoteAddr() string {
	return c.addr
}

// Close sends a best-effort close frame before closing the socket.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
