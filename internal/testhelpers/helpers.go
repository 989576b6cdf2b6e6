// Package testhelpers provides common utilities and helper functions for testing the chat server.
//
// This package contains reusable test utilities shared by the server and
// end-to-end tests. It provides functions for starting servers on loopback
// listeners, connecting line-protocol and WebSocket clients, and asserting on
// the events they receive.
package testhelpers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/tcpchat/internal/chat"
	"github.com/Tyrowin/tcpchat/internal/protocol"
	"github.com/Tyrowin/tcpchat/internal/server"
)

// DefaultTimeout bounds every wait in these helpers.
const DefaultTimeout = 2 * time.Second

// TestOrigin is an origin allowed by the default server configuration.
const TestOrigin = "http://localhost:8080"

// Logger returns a logger that only prints when CHAT_TEST_LOG is set.
func Logger() *slog.Logger {
	if os.Getenv("CHAT_TEST_LOG") != "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// StartServer starts a chat server on a loopback port and shuts it down when
// the test ends. It returns the server and its address.
func StartServer(t *testing.T, registry *chat.Registry, cfg server.Config) (*server.Server, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	srv := server.New(registry, cfg, Logger())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := <-served; !errors.Is(err, server.ErrServerClosed) {
			t.Errorf("Serve() error = %v, want ErrServerClosed", err)
		}
	})

	return srv, ln.Addr().String()
}

// StartGateway starts an httptest server running the gateway routes for srv.
func StartGateway(t *testing.T, srv *server.Server) *httptest.Server {
	t.Helper()
	gw := server.NewGateway(srv, Logger())
	ts := httptest.NewServer(gw.Routes())
	t.Cleanup(ts.Close)
	return ts
}

// LineClient speaks the line protocol to a server.
type LineClient struct {
	Conn net.Conn
	dec  *protocol.Decoder
	enc  *protocol.Encoder
}

// Dial connects a LineClient to addr and closes it when the test ends.
func Dial(t *testing.T, addr string) *LineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &LineClient{
		Conn: conn,
		dec:  protocol.NewDecoder(conn, 0),
		enc:  protocol.NewEncoder(conn),
	}
}

// Send writes one command.
func (c *LineClient) Send(t *testing.T, cmd protocol.Command) {
	t.Helper()
	if err := c.enc.Encode(cmd); err != nil {
		t.Fatalf("Failed to send %s: %v", cmd.Kind, err)
	}
}

// SendRaw writes raw bytes, used for malformed input.
func (c *LineClient) SendRaw(t *testing.T, data string) {
	t.Helper()
	if _, err := io.WriteString(c.Conn, data); err != nil {
		t.Fatalf("Failed to write raw data: %v", err)
	}
}

// Receive reads the next event within DefaultTimeout.
func (c *LineClient) Receive() (protocol.Event, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		return protocol.Event{}, err
	}
	return c.dec.DecodeEvent()
}

// Expect reads the next event and fails the test if it differs from want.
func (c *LineClient) Expect(t *testing.T, want protocol.Event) {
	t.Helper()
	got, err := c.Receive()
	if err != nil {
		t.Fatalf("Failed to receive %+v: %v", want, err)
	}
	if got != want {
		t.Fatalf("Received %+v, want %+v", got, want)
	}
}

// ExpectNone fails the test if an event arrives within d. It leaves the
// connection unusable for further reads, so call it last.
func (c *LineClient) ExpectNone(t *testing.T, d time.Duration) {
	t.Helper()
	if err := c.Conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	ev, err := c.dec.DecodeEvent()
	if err == nil {
		t.Fatalf("Expected no event, received %+v", ev)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// ExpectClosed fails the test unless the server closes the connection.
func (c *LineClient) ExpectClosed(t *testing.T) {
	t.Helper()
	if err := c.Conn.SetReadDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	for {
		_, err := c.dec.DecodeEvent()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			t.Fatal("Connection was not closed by the server")
		}
		return
	}
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// Eventually polls cond until it holds or DefaultTimeout passes.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met: %s", msg)
}
