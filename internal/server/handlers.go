// Package server exposes HTTP handlers for the gateway: WebSocket upgrades
// into chat sessions, health checks, and room statistics.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/tcpchat/internal/chat"
)

// Gateway lets WebSocket clients run chat sessions on a Server. Every text
// frame carries exactly one command or event in the line protocol's JSON shape.
type Gateway struct {
	server   *Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewGateway creates a Gateway that hands upgraded connections to srv.
func NewGateway(srv *Server, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	origins := newOriginPolicy(srv.cfg.AllowedOrigins, logger)
	return &Gateway{
		server: srv,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		logger: logger,
	}
}

// WebSocketHandler handles WebSocket upgrade requests and runs a Session over
// the upgraded connection until it ends.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if err := g.server.ServeConn(NewWebSocketConn(conn, r.RemoteAddr, g.server.cfg)); err != nil {
		g.logger.Warn("websocket session ended with error", "remote", r.RemoteAddr, "error", err)
	}
}

// StatsResponse is the body served by StatsHandler.
type StatsResponse struct {
	Sessions int              `json:"sessions"`
	Rooms    []chat.RoomStats `json:"rooms"`
}

// StatsHandler reports live sessions and per-room subscriber and post counts.
func (g *Gateway) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := StatsResponse{
		Sessions: g.server.Sessions(),
		Rooms:    g.server.Registry().Stats(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		g.logger.Warn("error writing stats response", "error", err)
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the server is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat server is running!")
}
