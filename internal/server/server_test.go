package server_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Tyrowin/tcpchat/internal/chat"
	"github.com/Tyrowin/tcpchat/internal/protocol"
	"github.com/Tyrowin/tcpchat/internal/server"
	"github.com/Tyrowin/tcpchat/internal/testhelpers"
)

// joinAndWait sends Join for room and waits until the room sees want subscribers.
func joinAndWait(t *testing.T, c *testhelpers.LineClient, registry *chat.Registry, room string, want int) {
	t.Helper()
	c.Send(t, protocol.JoinCommand(room))
	r := registry.FindOrCreate(room)
	testhelpers.Eventually(t, func() bool { return r.Subscribers() == want }, "subscribers in "+room)
}

// TestMessageReachesEveryMember verifies that a post is delivered to every
// session in the room, including the poster.
func TestMessageReachesEveryMember(t *testing.T) {
	registry := chat.NewRegistry(100)
	_, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	alice := testhelpers.Dial(t, addr)
	bob := testhelpers.Dial(t, addr)
	joinAndWait(t, alice, registry, "lobby", 1)
	joinAndWait(t, bob, registry, "lobby", 2)

	bob.Send(t, protocol.PostCommand("lobby", "hi"))

	alice.Expect(t, protocol.MessageEvent("lobby", "hi"))
	bob.Expect(t, protocol.MessageEvent("lobby", "hi"))
}

// TestPostToUnjoinedRoom verifies the error reply for a room the session never joined.
func TestPostToUnjoinedRoom(t *testing.T) {
	_, addr := testhelpers.StartServer(t, chat.NewRegistry(100), server.DefaultConfig())

	c := testhelpers.Dial(t, addr)
	c.Send(t, protocol.PostCommand("void", "x"))
	c.Expect(t, protocol.ErrorEvent("You are not in void"))
}

// TestLeaveTwice verifies that the second Leave of the same room is rejected
// and that nothing posted after leaving is delivered.
func TestLeaveTwice(t *testing.T) {
	registry := chat.NewRegistry(100)
	_, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	c := testhelpers.Dial(t, addr)
	joinAndWait(t, c, registry, "lobby", 1)

	c.Send(t, protocol.LeaveCommand("lobby"))
	c.Send(t, protocol.LeaveCommand("lobby"))
	c.Expect(t, protocol.ErrorEvent("You are not in lobby"))

	registry.FindOrCreate("lobby").Post("after leave")
	c.ExpectNone(t, 100*time.Millisecond)
}

// TestRoomsAreIndependent verifies that members of one room never see
// traffic from another.
func TestRoomsAreIndependent(t *testing.T) {
	registry := chat.NewRegistry(100)
	_, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	alice := testhelpers.Dial(t, addr)
	bob := testhelpers.Dial(t, addr)
	joinAndWait(t, alice, registry, "red", 1)
	joinAndWait(t, bob, registry, "blue", 1)

	alice.Send(t, protocol.PostCommand("red", "for red"))
	bob.Send(t, protocol.PostCommand("blue", "for blue"))

	alice.Expect(t, protocol.MessageEvent("red", "for red"))
	bob.Expect(t, protocol.MessageEvent("blue", "for blue"))
	alice.ExpectNone(t, 50*time.Millisecond)
	bob.ExpectNone(t, 50*time.Millisecond)
}

// TestPostsArriveInOrder verifies per-room ordering for a single poster.
func TestPostsArriveInOrder(t *testing.T) {
	registry := chat.NewRegistry(1000)
	_, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	listener := testhelpers.Dial(t, addr)
	poster := testhelpers.Dial(t, addr)
	joinAndWait(t, listener, registry, "lobby", 1)
	joinAndWait(t, poster, registry, "lobby", 2)

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		poster.Send(t, protocol.PostCommand("lobby", text))
	}
	for _, text := range texts {
		listener.Expect(t, protocol.MessageEvent("lobby", text))
	}
}

// TestMalformedLineClosesConnection verifies that a line that is not a
// recognized command ends only the offending session; the server keeps
// accepting connections.
func TestMalformedLineClosesConnection(t *testing.T) {
	registry := chat.NewRegistry(100)
	srv, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	tests := []struct {
		name string
		line string
	}{
		{"invalid json", "{not json}\n"},
		{"unknown tag", `{"Shout":{"chat_name":"lobby"}}` + "\n"},
		{"field name case", `{"Join":{"CHAT_NAME":"lobby"}}` + "\n"},
		{"invalid utf-8", "{\"Post\":{\"chat_name\":\"lobby\",\"message\":\"\xff\xfe\"}}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testhelpers.Dial(t, addr)
			c.SendRaw(t, tt.line)
			c.ExpectClosed(t)
		})
	}

	testhelpers.Eventually(t, func() bool { return srv.Sessions() == 0 }, "sessions released")
	if n := registry.Len(); n != 0 {
		t.Errorf("registry has %d rooms, want 0; no malformed line may run", n)
	}

	good := testhelpers.Dial(t, addr)
	good.Send(t, protocol.PostCommand("void", "x"))
	good.Expect(t, protocol.ErrorEvent("You are not in void"))
}

// TestOversizedLineClosesConnection verifies the configured line size limit.
func TestOversizedLineClosesConnection(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.MaxLineSize = 128
	_, addr := testhelpers.StartServer(t, chat.NewRegistry(100), cfg)

	c := testhelpers.Dial(t, addr)
	line := `{"Post":{"room":"lobby","text":"` + strings.Repeat("x", 512) + `"}}` + "\n"
	c.SendRaw(t, line)
	c.ExpectClosed(t)
}

// TestRateLimitedCommandsAreDiscarded verifies that commands over the burst
// are answered with an error and not executed.
func TestRateLimitedCommandsAreDiscarded(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.RateLimit = server.RateLimitConfig{Burst: 2, RefillInterval: time.Hour}
	registry := chat.NewRegistry(100)
	_, addr := testhelpers.StartServer(t, registry, cfg)

	c := testhelpers.Dial(t, addr)
	c.Send(t, protocol.LeaveCommand("a"))
	c.Send(t, protocol.LeaveCommand("b"))
	c.Send(t, protocol.JoinCommand("c"))

	c.Expect(t, protocol.ErrorEvent("You are not in a"))
	c.Expect(t, protocol.ErrorEvent("You are not in b"))
	c.Expect(t, protocol.ErrorEvent("Rate limit exceeded; command discarded"))

	if n := registry.Len(); n != 0 {
		t.Errorf("registry has %d rooms, want 0; the discarded Join must not run", n)
	}
}

// TestDisconnectReleasesSubscriptions verifies that a closed client leaves
// every room it joined.
func TestDisconnectReleasesSubscriptions(t *testing.T) {
	registry := chat.NewRegistry(100)
	srv, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	c := testhelpers.Dial(t, addr)
	joinAndWait(t, c, registry, "a", 1)
	joinAndWait(t, c, registry, "b", 1)
	if n := srv.Sessions(); n != 1 {
		t.Fatalf("Sessions() = %d, want 1", n)
	}

	_ = c.Conn.Close()

	testhelpers.Eventually(t, func() bool {
		for _, st := range registry.Stats() {
			if st.Subscribers != 0 {
				return false
			}
		}
		return srv.Sessions() == 0
	}, "subscriptions released after disconnect")
}

// TestRegistryCloseEndsForwarders verifies that closing the registry stops
// delivery without disconnecting clients.
func TestRegistryCloseEndsForwarders(t *testing.T) {
	registry := chat.NewRegistry(100)
	_, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	c := testhelpers.Dial(t, addr)
	joinAndWait(t, c, registry, "lobby", 1)

	registry.Close()
	lobby := registry.FindOrCreate("lobby")
	testhelpers.Eventually(t, func() bool { return lobby.Subscribers() == 0 }, "forwarder stopped")

	// The room feed is gone, so the session no longer counts as a member.
	c.Send(t, protocol.PostCommand("lobby", "x"))
	c.Expect(t, protocol.ErrorEvent("You are not in lobby"))
}

// TestShutdownClosesSessions verifies that Shutdown disconnects live clients
// and that later connections are refused.
func TestShutdownClosesSessions(t *testing.T) {
	registry := chat.NewRegistry(100)
	srv, addr := testhelpers.StartServer(t, registry, server.DefaultConfig())

	clients := make([]*testhelpers.LineClient, 3)
	for i := range clients {
		clients[i] = testhelpers.Dial(t, addr)
		joinAndWait(t, clients[i], registry, "lobby", i+1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), testhelpers.DefaultTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	for _, c := range clients {
		c.ExpectClosed(t)
	}
	if n := srv.Sessions(); n != 0 {
		t.Errorf("Sessions() = %d after shutdown, want 0", n)
	}

	// ServeConn refuses work once the server is closed.
	if err := srv.ServeConn(nopConn{}); err != server.ErrServerClosed {
		t.Errorf("ServeConn() after shutdown = %v, want ErrServerClosed", err)
	}
}

type nopConn struct{}

func (nopConn) ReadCommand() (protocol.Command, error) { return protocol.Command{}, context.Canceled }
func (nopConn) WriteEvent(protocol.Event) error       { return nil }
func (nopConn) RemoteAddr() string                    { return "nop" }
func (nopConn) Close() error                          { return nil }
