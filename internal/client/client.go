package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/tcpchat/internal/protocol"
)

// Client relays user input to a chat server and prints what comes back.
type Client struct {
	conn   net.Conn
	in     io.Reader
	logger *slog.Logger

	outMu sync.Mutex
	out   io.Writer
}

// New creates a Client over an established connection.
func New(conn net.Conn, in io.Reader, out io.Writer, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{conn: conn, in: in, out: out, logger: logger}
}

// Run sends parsed input lines and prints server events until input ends, the
// server disconnects, or ctx is cancelled. Whichever side finishes first ends
// the other. The connection is closed on return.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.Close()
	})
	defer stop()
	defer c.conn.Close()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go c.scan(ctx, lines, scanErr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return c.sendLoop(gctx, lines, scanErr)
	})
	g.Go(func() error {
		defer cancel()
		return c.receiveLoop(gctx)
	})
	return g.Wait()
}

// scan feeds input lines to the send loop. It runs outside the errgroup since
// a blocked read on the terminal cannot be interrupted.
func (c *Client) scan(ctx context.Context, lines chan<- string, scanErr chan<- error) {
	defer close(lines)

	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	scanErr <- scanner.Err()
}

func (c *Client) sendLoop(ctx context.Context, lines <-chan string, scanErr <-chan error) error {
	enc := protocol.NewEncoder(c.conn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}

			cmd, ok := ParseInput(line)
			if !ok {
				c.printf("Unrecognized input %s\n", line)
				continue
			}
			if err := enc.Encode(cmd); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send command: %w", err)
			}
		}
	}
}

func (c *Client) receiveLoop(ctx context.Context) error {
	dec := protocol.NewDecoder(c.conn, 0)
	for {
		ev, err := dec.DecodeEvent()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("receive event: %w", err)
		}
		c.print(ev)
	}
}

func (c *Client) print(ev protocol.Event) {
	switch ev.Kind {
	case protocol.Message:
		c.printf("Chat message %s:\n  %s\n", ev.Room, ev.Text)
	case protocol.Error:
		c.printf("Error: %s\n", ev.Text)
	default:
		c.logger.Warn("unknown event", "kind", ev.Kind.String())
	}
}

func (c *Client) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}
