// Package server implements the chat relay's connection handling.
//
// The implementation is organized into specialized files for configuration,
// sessions, transports, the TCP accept loop, and the WebSocket gateway so each
// concern can be tested on its own.
//
// Each accepted connection becomes a Session. A Session runs one command loop
// reading Join, Leave and Post commands, plus one forwarder goroutine per
// joined room that copies room posts to the client. All writes to a client go
// through a single mutex so frames from different forwarders never interleave.
package server
