// Package client implements the interactive chat client: it turns lines like
// "JOIN lobby" or "post lobby hello" into protocol commands and prints the
// server's Message and Error events.
package client
