package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

const replyTimeout = 2 * time.Second

var ErrClosed = errors.New("mpv connection closed")

// CommandError is a command mpv answered with something other than
// "success".
type CommandError struct {
	Command string
	Reason  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("mpv %s: %s", e.Command, e.Reason)
}

// Event is a message from mpv's JSON IPC. Replies carry RequestID and Error;
// property changes carry Name, ID and Data.
type Event struct {
	Event     string          `json:"event"`
	Name      string          `json:"name,omitempty"`
	ID        int             `json:"id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID int             `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type command struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type client struct {
	conn    net.Conn
	logger  *slog.Logger
	timeout time.Duration

	writeMu sync.Mutex

	// mu guards the reply waiters; closed is set once the reader stops.
	mu      sync.Mutex
	nextID  int
	pending map[int]chan Event
	closed  bool

	events chan Event
}

func newClient(conn net.Conn, logger *slog.Logger) *client {
	c := &client{
		conn:    conn,
		logger:  logger,
		timeout: replyTimeout,
		pending: make(map[int]chan Event),
		events:  make(chan Event, 100),
	}
	go c.readEvents()
	return c
}

var socketSeq atomic.Int64

// SocketPath picks an IPC socket path unique to this process and launch.
func SocketPath() string {
	if path := os.Getenv("MPV_IPC_SOCKET"); path != "" {
		return path
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("vitrina-mpv-%d-%d.sock", os.Getpid(), socketSeq.Add(1)))
}

func dial(ctx context.Context, socketPath string, attempts int, delay time.Duration, logger *slog.Logger) (net.Conn, error) {
	var d net.Dialer
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if _, err := os.Stat(socketPath); err == nil {
			conn, err := d.DialContext(ctx, "unix", socketPath)
			if err == nil {
				logger.Debug("connected to mpv", "socket", socketPath, "attempt", attempt)
				return conn, nil
			}
			lastErr = err
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("connect to mpv socket after %d attempts: %w", attempts, lastErr)
}

func (c *client) readEvents() {
	defer func() {
		c.shutdown()
		close(c.events)
	}()

	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			c.logger.Warn("failed to decode mpv event", "error", err)
			continue
		}
		if event.Event == "" {
			c.deliver(event)
			continue
		}
		c.events <- event
	}
	if err := scanner.Err(); err != nil {
		c.logger.Debug("mpv event reader stopped", "error", err)
	}
}

func (c *client) deliver(reply Event) {
	c.mu.Lock()
	waiter, ok := c.pending[reply.RequestID]
	delete(c.pending, reply.RequestID)
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("unexpected mpv reply", "request_id", reply.RequestID, "error", reply.Error)
		return
	}
	waiter <- reply
}

// shutdown fails every command still waiting for a reply.
func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, waiter := range c.pending {
		close(waiter)
		delete(c.pending, id)
	}
}

// send issues a command and waits for mpv's reply.
func (c *client) send(args ...any) error {
	name := fmt.Sprint(args[0])

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	id := c.nextID
	waiter := make(chan Event, 1)
	c.pending[id] = waiter
	c.mu.Unlock()

	data, err := json.Marshal(command{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return fmt.Errorf("marshal mpv command: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("send mpv command: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case reply, ok := <-waiter:
		if !ok {
			return ErrClosed
		}
		if reply.Error != "success" {
			return &CommandError{Command: name, Reason: reply.Error}
		}
		return nil
	case <-timer.C:
		c.forget(id)
		return fmt.Errorf("mpv %s: no reply after %s", name, c.timeout)
	}
}

func (c *client) forget(id int) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *client) observe(id int, property string) error {
	return c.send("observe_property", id, property)
}

func (c *client) close() error {
	return c.conn.Close()
}
