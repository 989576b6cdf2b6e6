// Package server defines shared error types and utility helpers that are
// reused across session, transport and gateway logic.
package server

import (
	"errors"
	"io"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// ErrServerClosed is returned by Serve and ServeConn after Shutdown.
var ErrServerClosed = errors.New("server closed")

// rateLimitedMessage is sent to a client whose command was dropped by the rate limiter.
const rateLimitedMessage = "Rate limit exceeded; command discarded"

// NotMemberError reports a Leave or Post for a room the session has not joined.
// Its text is sent to the client verbatim.
type NotMemberError struct {
	Room string
}

func (e *NotMemberError) Error() string {
	return "You are not in " + e.Room
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
