// Package server manages individual chat sessions, handling the inbound
// command loop, one forwarder per joined room, and the serialized write path
// shared by all of them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/tcpchat/internal/chat"
	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// Session is the server side of one client connection.
type Session struct {
	id       uuid.UUID
	conn     Conn
	registry *chat.Registry
	logger   *slog.Logger
	limiter  *rateLimiter

	// writeMu serializes every frame written to conn.
	writeMu sync.Mutex

	// mu guards joined. Never held across I/O.
	mu     sync.Mutex
	joined map[string]*membership

	forwarders sync.WaitGroup
}

// membership is one joined room. A forwarder delivers only while its own
// membership is the one recorded in Session.joined.
type membership struct {
	room   *chat.Room
	cancel context.CancelFunc
}

// NewSession creates a Session for conn that resolves rooms through registry.
func NewSession(conn Conn, registry *chat.Registry, cfg Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = sanitizeConfig(cfg)

	id := uuid.New()
	return &Session{
		id:       id,
		conn:     conn,
		registry: registry,
		logger:   logger.With("session_id", id.String(), "remote", conn.RemoteAddr()),
		limiter:  newRateLimiter(cfg.RateLimit),
		joined:   make(map[string]*membership),
	}
}

// ID returns the session identifier used in logs and stats.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// RemoteAddr returns the peer address of the underlying connection.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr()
}

// Joined returns the names of the rooms this session belongs to, sorted.
func (s *Session) Joined() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.joined))
	for name := range s.joined {
		names = append(names, name)
	}
	s.mu.Unlock()

	sort.Strings(names)
	return names
}

// Close closes the connection, which ends Run.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Run reads and executes commands until the client disconnects, sends a
// malformed line, a reply cannot be written, or ctx ends. On return every
// forwarder has stopped and the connection is closed. A clean disconnect
// returns nil.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.Close()
	})
	defer func() {
		stop()
		cancel()
		s.teardown()
	}()

	for {
		cmd, err := s.conn.ReadCommand()
		if err != nil {
			if ctx.Err() != nil || isExpectedCloseError(err) {
				return nil
			}
			return fmt.Errorf("read command: %w", err)
		}

		if !s.limiter.allow() {
			s.logger.Warn("rate limit exceeded; discarding command", "command", cmd.Kind.String())
			if err := s.send(protocol.ErrorEvent(rateLimitedMessage)); err != nil {
				return fmt.Errorf("send reply: %w", err)
			}
			continue
		}

		if err := s.dispatch(ctx, cmd); err != nil {
			if err := s.send(protocol.ErrorEvent(err.Error())); err != nil {
				return fmt.Errorf("send reply: %w", err)
			}
		}
	}
}

// dispatch applies one command. The returned error is meant for the client.
func (s *Session) dispatch(ctx context.Context, cmd protocol.Command) error {
	switch cmd.Kind {
	case protocol.Join:
		s.join(ctx, cmd.Room)
		return nil
	case protocol.Leave:
		return s.leave(cmd.Room)
	case protocol.Post:
		return s.post(cmd.Room, cmd.Text)
	default:
		return fmt.Errorf("unsupported command %s", cmd.Kind)
	}
}

func (s *Session) join(ctx context.Context, name string) {
	room := s.registry.FindOrCreate(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.joined[name]; ok {
		return
	}

	fctx, cancel := context.WithCancel(ctx)
	m := &membership{room: room, cancel: cancel}
	s.joined[name] = m

	// Subscribe before Join returns so posts made after it are never missed.
	sub := room.Subscribe()
	s.forwarders.Add(1)
	go s.forward(fctx, name, m, sub)

	s.logger.Debug("joined room", "room", name)
}

func (s *Session) leave(name string) error {
	s.mu.Lock()
	m, ok := s.joined[name]
	if ok {
		delete(s.joined, name)
	}
	s.mu.Unlock()

	if !ok {
		return &NotMemberError{Room: name}
	}
	m.cancel()
	s.logger.Debug("left room", "room", name)
	return nil
}

func (s *Session) post(name, text string) error {
	s.mu.Lock()
	m, ok := s.joined[name]
	s.mu.Unlock()

	if !ok {
		return &NotMemberError{Room: name}
	}
	m.room.Post(text)
	return nil
}

// forward drains one room subscription into the session's write path.
func (s *Session) forward(ctx context.Context, name string, m *membership, sub *chat.Subscription) {
	defer s.forwarders.Done()
	defer sub.Close()

	logger := s.logger.With("room", name)

	for {
		text, err := sub.Next(ctx)

		var ev protocol.Event
		var lag *chat.LagError
		switch {
		case err == nil:
			ev = protocol.MessageEvent(name, text)
		case errors.As(err, &lag):
			logger.Warn("subscriber lagged", "missed", lag.Missed)
			ev = protocol.ErrorEvent(lag.Error())
		case errors.Is(err, chat.ErrClosed):
			logger.Debug("room feed closed; forwarder stopping")
			s.release(name, m)
			return
		default:
			logger.Debug("forwarder cancelled")
			return
		}

		delivered, err := s.deliver(name, m, ev)
		if err != nil {
			if !isExpectedCloseError(err) {
				logger.Warn("forward write failed", "error", err)
			}
			s.release(name, m)
			return
		}
		if !delivered {
			logger.Debug("membership ended; forwarder stopping")
			return
		}
	}
}

// deliver writes ev only if m is still the current membership for name.
// Membership is rechecked under the write lock immediately before the write,
// so an event read from the feed is dropped if its room was left meanwhile.
// A write that already passed the check may finish after a concurrent Leave.
func (s *Session) deliver(name string, m *membership, ev protocol.Event) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.isMember(name, m) {
		return false, nil
	}
	return true, s.conn.WriteEvent(ev)
}

func (s *Session) isMember(name string, m *membership) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joined[name] == m
}

// release drops m from the joined set if it is still current, keeping the set
// in step with the forwarders that are actually running.
func (s *Session) release(name string, m *membership) {
	s.mu.Lock()
	if s.joined[name] == m {
		delete(s.joined, name)
	}
	s.mu.Unlock()
	m.cancel()
}

// send writes one event to the client.
func (s *Session) send(ev protocol.Event) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteEvent(ev)
}

// teardown clears the joined set, stops every forwarder and closes the connection.
func (s *Session) teardown() {
	s.mu.Lock()
	joined := s.joined
	s.joined = make(map[string]*membership)
	s.mu.Unlock()

	for _, m := range joined {
		m.cancel()
	}

	if err := s.conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.logger.Debug("error closing connection", "error", err)
	}
	s.forwarders.Wait()

	s.logger.Info("session closed", "rooms", len(joined))
}
