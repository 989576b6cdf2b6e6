package server

import (
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// Conn is the transport a Session runs over. ReadCommand is only called from
// the session's command loop; WriteEvent is only called with the session's
// write lock held. Close must be safe to call more than once and must unblock
// a pending ReadCommand.
type Conn interface {
	ReadCommand() (protocol.Command, error)
	WriteEvent(ev protocol.Event) error
	RemoteAddr() string
	Close() error
}

// lineConn carries one JSON object per line over a stream socket.
type lineConn struct {
	conn         net.Conn
	dec          *protocol.Decoder
	enc          *protocol.Encoder
	writeTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// NewLineConn wraps a stream connection in the line-delimited JSON transport.
func NewLineConn(conn net.Conn, cfg Config) Conn {
	cfg = sanitizeConfig(cfg)
	return &lineConn{
		conn:         conn,
		dec:          protocol.NewDecoder(conn, cfg.MaxLineSize),
		enc:          protocol.NewEncoder(conn),
		writeTimeout: cfg.WriteTimeout,
	}
}

func (c *lineConn) ReadCommand() (protocol.Command, error) {
	return c.dec.DecodeCommand()
}

func (c *lineConn) WriteEvent(ev protocol.Event) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.enc.Encode(ev)
}

func (c *lineConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (c *lineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
