package client

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// Usage is printed when the client starts.
const Usage = `Options:
join CHAT
leave CHAT
post CHAT MESSAGE
Type CTRL-D on Unix or CTRL-Z on Windows to close the connection`

// ParseInput maps one line of user input to a command. The command word is
// case-insensitive. It reports false for anything that should not be sent:
// unknown words, a missing room, or a post without a message.
func ParseInput(line string) (protocol.Command, bool) {
	word, rest, ok := splitWord(line)
	if !ok {
		return protocol.Command{}, false
	}

	// A Caser is stateful, so each call gets its own.
	switch cases.Fold().String(word) {
	case "join":
		room := strings.TrimSpace(rest)
		if room == "" {
			return protocol.Command{}, false
		}
		return protocol.JoinCommand(room), true
	case "leave":
		room := strings.TrimSpace(rest)
		if room == "" {
			return protocol.Command{}, false
		}
		return protocol.LeaveCommand(room), true
	case "post":
		room, message, ok := splitWord(rest)
		if !ok {
			return protocol.Command{}, false
		}
		message = strings.TrimSpace(message)
		if message == "" {
			return protocol.Command{}, false
		}
		return protocol.PostCommand(room, message), true
	default:
		return protocol.Command{}, false
	}
}

// splitWord returns the first whitespace-delimited word of s and what follows it.
func splitWord(s string) (string, string, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	if s == "" {
		return "", "", false
	}
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, "", true
	}
	return s[:i], s[i:], true
}
