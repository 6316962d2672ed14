// Package svdrp talks to a running VDR instance over SVDRP, VDR's
// line-oriented TCP control protocol, and provides the timer, channel and
// recording collaborators the timeshift controller drives.
package svdrp

import (
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/metrics"
)

// Client is a serialized SVDRP connection. VDR accepts a single control
// connection at a time, so all commands share one conn behind a mutex and
// a dropped connection is re-dialed on the next command.
type Client struct {
	addr           string
	connectTimeout time.Duration
	commandTimeout time.Duration
	logger         zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
	text *textproto.Conn
}

// NewClient creates a client for the given SVDRP address. No connection is
// made until the first command.
func NewClient(addr string, connectTimeout, commandTimeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		addr:           addr,
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
		logger:         logger.With().Str("component", "svdrp").Logger(),
	}
}

// Connect dials VDR and consumes the greeting.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", c.addr, c.connectTimeout)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.addr, err)
	}
	text := textproto.NewConn(conn)

	_ = conn.SetDeadline(time.Now().Add(c.commandTimeout))
	if _, _, err := text.ReadResponse(220); err != nil {
		_ = conn.Close()
		return fmt.Errorf("svdrp greeting: %w", err)
	}
	_ = conn.SetDeadline(time.Time{})

	c.conn = conn
	c.text = text
	c.logger.Info().Str("addr", c.addr).Msg("Connected to VDR")
	return nil
}

// Close sends QUIT and tears the connection down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetDeadline(time.Now().Add(2 * time.Second))
	_ = c.text.PrintfLine("QUIT")
	_, _, _ = c.text.ReadResponse(221)
	err := c.conn.Close()
	c.conn = nil
	c.text = nil
	return err
}

// Exec sends one command and returns the response lines. Continuation lines
// (code-text) and the final line (code text) are returned without their code
// prefix. A 4xx/5xx response comes back as an error carrying the code.
func (c *Client) Exec(format string, args ...any) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line := fmt.Sprintf(format, args...)
	command := line
	if i := strings.IndexByte(line, ' '); i > 0 {
		command = line[:i]
	}

	lines, err := c.execLocked(line)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SVDRPCommands.WithLabelValues(command, status).Inc()
	return lines, err
}

func (c *Client) execLocked(line string) ([]string, error) {
	if err := c.connectLocked(); err != nil {
		return nil, err
	}

	_ = c.conn.SetDeadline(time.Now().Add(c.commandTimeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.text.PrintfLine("%s", line); err != nil {
		c.dropLocked()
		return nil, fmt.Errorf("sending %q: %w", line, err)
	}

	code, message, err := c.text.ReadResponse(2)
	if err != nil {
		if _, ok := err.(*textproto.Error); ok {
			// Protocol-level refusal; the connection is still good.
			return nil, fmt.Errorf("command %q: %w", line, err)
		}
		c.dropLocked()
		return nil, fmt.Errorf("reading response to %q: %w", line, err)
	}

	c.logger.Trace().Str("command", line).Int("code", code).Msg("SVDRP exchange")
	return strings.Split(message, "\n"), nil
}

// dropLocked discards a connection after an I/O error so the next command
// re-dials.
func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.text = nil
}
