// Package server wires gateway handlers into a ServeMux via routing helpers.
package server

import "net/http"

// Routes configures and returns an HTTP ServeMux with all gateway routes.
// It sets up handlers for health check, room statistics, and the WebSocket endpoint.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/stats", g.StatsHandler)
	mux.HandleFunc("/ws", g.WebSocketHandler)
	return mux
}
