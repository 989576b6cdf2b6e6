// Package server accepts TCP connections, runs one Session per connection
// against a shared room registry, and coordinates graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Tyrowin/tcpchat/internal/chat"
)

// Server runs chat sessions. A single Server can serve a TCP listener and
// sessions handed over by the WebSocket gateway at the same time.
type Server struct {
	registry *chat.Registry
	cfg      Config
	logger   *slog.Logger

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	sessions  map[*Session]struct{}
	closed    bool
	wg        sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server that resolves rooms through registry.
func New(registry *chat.Registry, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		registry:  registry,
		cfg:       sanitizeConfig(cfg),
		logger:    logger,
		listeners: make(map[net.Listener]struct{}),
		sessions:  make(map[*Session]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Registry returns the room registry shared by all sessions.
func (s *Server) Registry() *chat.Registry {
	return s.registry
}

// ListenAndServe listens on the TCP address addr and serves connections.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called, running each in
// its own Session. It always returns a non-nil error; after Shutdown the
// error is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	if !s.trackListener(ln, true) {
		_ = ln.Close()
		return ErrServerClosed
	}
	defer s.trackListener(ln, false)

	s.logger.Info("chat server listening", "addr", ln.Addr().String())

	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.shuttingDown() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			if backoff == 0 {
				backoff = 5 * time.Millisecond
			} else {
				backoff *= 2
			}
			if backoff > time.Second {
				backoff = time.Second
			}
			s.logger.Error("accept error; retrying", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		go func() {
			if err := s.ServeConn(NewLineConn(conn, s.cfg)); err != nil && !errors.Is(err, ErrServerClosed) {
				s.logger.Warn("session ended with error", "remote", conn.RemoteAddr().String(), "error", err)
			}
		}()
	}
}

// ServeConn runs a Session over conn and blocks until it ends.
func (s *Server) ServeConn(conn Conn) error {
	session := NewSession(conn, s.registry, s.cfg, s.logger)

	if !s.trackSession(session, true) {
		_ = conn.Close()
		return ErrServerClosed
	}
	defer s.trackSession(session, false)

	session.logger.Info("session started")
	return session.Run(s.ctx)
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops accepting connections, ends every live session and waits
// for them to finish or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down chat server")

	s.mu.Lock()
	s.closed = true
	listeners := make([]net.Listener, 0, len(s.listeners))
	for ln := range s.listeners {
		listeners = append(listeners, ln)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			s.logger.Warn("error closing listener", "error", err)
		}
	}

	// Cancelling the shared context closes every session's connection.
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("chat server shutdown completed", "sessions", count)
		return nil
	case <-ctx.Done():
		s.logger.Warn("chat server shutdown timed out", "remaining", s.Sessions())
		return ctx.Err()
	}
}

func (s *Server) shuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(ln net.Listener, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.closed {
			return false
		}
		s.listeners[ln] = struct{}{}
		return true
	}
	delete(s.listeners, ln)
	return true
}

func (s *Server) trackSession(session *Session, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if add {
		if s.closed {
			return false
		}
		s.sessions[session] = struct{}{}
		s.wg.Add(1)
		return true
	}
	delete(s.sessions, session)
	s.wg.Done()
	return true
}
