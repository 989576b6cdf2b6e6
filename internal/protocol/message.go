package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Errors
var (
	ErrUnknownVariant = errors.New("unknown variant")
	ErrMissingField   = errors.New("missing field")
	ErrLineTooLong    = errors.New("line exceeds maximum size")
	ErrInvalidUTF8    = errors.New("invalid UTF-8")
)

// CommandKind identifies a client to server command.
type CommandKind int

const (
	Join CommandKind = iota + 1
	Leave
	Post
)

func (k CommandKind) String() string {
	switch k {
	case Join:
		return "Join"
	case Leave:
		return "Leave"
	case Post:
		return "Post"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is a client to server request. Text is only meaningful for Post.
type Command struct {
	Kind CommandKind
	Room string
	Text string
}

// JoinCommand builds a Join command for room.
func JoinCommand(room string) Command {
	return Command{Kind: Join, Room: room}
}

// LeaveCommand builds a Leave command for room.
func LeaveCommand(room string) Command {
	return Command{Kind: Leave, Room: room}
}

// PostCommand builds a Post command carrying text to room.
func PostCommand(room, text string) Command {
	return Command{Kind: Post, Room: room, Text: text}
}

// EventKind identifies a server to client event.
type EventKind int

const (
	Message EventKind = iota + 1
	Error
)

func (k EventKind) String() string {
	switch k {
	case Message:
		return "Message"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a server to client notification. Room is empty for Error events.
type Event struct {
	Kind EventKind
	Room string
	Text string
}

// MessageEvent builds a Message event for text posted in room.
func MessageEvent(room, text string) Event {
	return Event{Kind: Message, Room: room, Text: text}
}

// ErrorEvent builds an Error event.
func ErrorEvent(text string) Event {
	return Event{Kind: Error, Text: text}
}

// Wire bodies for encoding. Field order matches the line format.

type roomBody struct {
	ChatName string `json:"chat_name"`
}

type postBody struct {
	ChatName string `json:"chat_name"`
	Message  string `json:"message"`
}

// MarshalJSON encodes the command as a single-key object keyed by its kind.
func (c Command) MarshalJSON() ([]byte, error) {
	var body any
	switch c.Kind {
	case Join, Leave:
		body = roomBody{ChatName: c.Room}
	case Post:
		body = postBody{ChatName: c.Room, Message: c.Text}
	default:
		return nil, fmt.Errorf("marshal command: %w: %s", ErrUnknownVariant, c.Kind)
	}
	return marshalTagged(c.Kind.String(), body)
}

// UnmarshalJSON decodes a single-key object keyed by the command kind.
func (c *Command) UnmarshalJSON(data []byte) error {
	tag, raw, err := splitTagged(data)
	if err != nil {
		return err
	}

	switch tag {
	case "Join", "Leave":
		body, err := objectBody(tag, raw)
		if err != nil {
			return err
		}
		room, err := stringField(tag, body, "chat_name")
		if err != nil {
			return err
		}
		kind := Join
		if tag == "Leave" {
			kind = Leave
		}
		*c = Command{Kind: kind, Room: room}
	case "Post":
		room, text, err := decodePostBody(tag, raw)
		if err != nil {
			return err
		}
		*c = Command{Kind: Post, Room: room, Text: text}
	default:
		return fmt.Errorf("decode command: %w %q", ErrUnknownVariant, tag)
	}
	return nil
}

// MarshalJSON encodes the event as a single-key object keyed by its kind.
// Error events carry a bare string body.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case Message:
		return marshalTagged("Message", postBody{ChatName: e.Room, Message: e.Text})
	case Error:
		return marshalTagged("Error", e.Text)
	default:
		return nil, fmt.Errorf("marshal event: %w: %s", ErrUnknownVariant, e.Kind)
	}
}

// UnmarshalJSON decodes a single-key object keyed by the event kind.
func (e *Event) UnmarshalJSON(data []byte) error {
	tag, raw, err := splitTagged(data)
	if err != nil {
		return err
	}

	switch tag {
	case "Message":
		room, text, err := decodePostBody(tag, raw)
		if err != nil {
			return err
		}
		*e = Event{Kind: Message, Room: room, Text: text}
	case "Error":
		var text string
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("decode Error: %w message", ErrMissingField)
		}
		if err := json.Unmarshal(raw, &text); err != nil {
			return fmt.Errorf("decode Error: %w", err)
		}
		*e = Event{Kind: Error, Text: text}
	default:
		return fmt.Errorf("decode event: %w %q", ErrUnknownVariant, tag)
	}
	return nil
}

func decodePostBody(tag string, raw json.RawMessage) (string, string, error) {
	body, err := objectBody(tag, raw)
	if err != nil {
		return "", "", err
	}
	room, err := stringField(tag, body, "chat_name")
	if err != nil {
		return "", "", err
	}
	text, err := stringField(tag, body, "message")
	if err != nil {
		return "", "", err
	}
	return room, text, nil
}

// objectBody decodes a variant body into its raw fields. Field names are
// looked up exactly; encoding/json struct decoding would fold their case.
// Unknown fields are ignored.
func objectBody(tag string, raw json.RawMessage) (map[string]json.RawMessage, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	if body == nil {
		return nil, fmt.Errorf("decode %s: body must be an object", tag)
	}
	return body, nil
}

// stringField returns the string stored under key. Null is not a string.
func stringField(tag string, body map[string]json.RawMessage, key string) (string, error) {
	raw, ok := body[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", fmt.Errorf("decode %s: %w %s", tag, ErrMissingField, key)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("decode %s: field %s: %w", tag, key, err)
	}
	return value, nil
}

// splitTagged returns the only key of a JSON object and its raw value.
func splitTagged(data []byte) (string, json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", nil, err
	}
	if len(fields) != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one tag, got %d", ErrUnknownVariant, len(fields))
	}
	for tag, raw := range fields {
		return tag, raw, nil
	}
	return "", nil, ErrUnknownVariant
}

func marshalTagged(tag string, body any) ([]byte, error) {
	inner, err := Marshal(body)
	if err != nil {
		return nil, err
	}
	key, err := Marshal(tag)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(key) + len(inner) + 3)
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(inner)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal is json.Marshal without HTML escaping, so <, > and & in chat text
// cross the wire unchanged.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
