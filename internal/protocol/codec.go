package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultMaxLineSize bounds a single inbound line when no limit is given.
const DefaultMaxLineSize = 64 * 1024

// Decoder reads one JSON value per line.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder returns a Decoder reading from r. Lines longer than maxLineSize
// bytes fail with ErrLineTooLong.
func NewDecoder(r io.Reader, maxLineSize int) *Decoder {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	scanner := bufio.NewScanner(r)
	initial := 4096
	if initial > maxLineSize {
		initial = maxLineSize
	}
	scanner.Buffer(make([]byte, 0, initial), maxLineSize)
	return &Decoder{scanner: scanner}
}

// Decode reads the next line and unmarshals it into v. Lines that are not
// valid UTF-8 fail with ErrInvalidUTF8. It returns io.EOF once the stream
// ends cleanly.
func (d *Decoder) Decode(v any) error {
	if !d.scanner.Scan() {
		err := d.scanner.Err()
		if err == nil {
			return io.EOF
		}
		if errors.Is(err, bufio.ErrTooLong) {
			return ErrLineTooLong
		}
		return err
	}
	line := d.scanner.Bytes()
	if !utf8.Valid(line) {
		return fmt.Errorf("malformed line: %w", ErrInvalidUTF8)
	}
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("malformed line: %w", err)
	}
	return nil
}

// DecodeCommand reads the next Command.
func (d *Decoder) DecodeCommand() (Command, error) {
	var cmd Command
	err := d.Decode(&cmd)
	return cmd, err
}

// DecodeEvent reads the next Event.
func (d *Decoder) DecodeEvent() (Event, error) {
	var ev Event
	err := d.Decode(&ev)
	return ev, err
}

// Encoder writes one JSON value per line and flushes after each value.
// It is not safe for concurrent use.
type Encoder struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Encoder{w: bw, enc: enc}
}

// Encode writes v followed by a newline and flushes it.
func (e *Encoder) Encode(v any) error {
	if err := e.enc.Encode(v); err != nil {
		return err
	}
	return e.w.Flush()
}
