// Package daemon implements the wire transport to the kukuri daemon, the
// separate process hosting the peer-to-peer document store. One websocket
// connection multiplexes request/response commands and push events for the
// profile and post document streams.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrConnClosed  = errors.New("daemon connection closed")
	ErrCallTimeout = errors.New("daemon call timed out")
)

// CommandError is a failure reported by the daemon for a dispatched
// command. The message is opaque; the daemon does not expose structured
// error codes.
type CommandError struct {
	Command string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %s", e.Command, e.Message)
}

// frame is the envelope for every message crossing the websocket.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Command string          `json:"command,omitempty"`
	Stream  string          `json:"stream,omitempty"`
	Event   string          `json:"event,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	frameRequest     = "request"
	frameResponse    = "response"
	frameEvent       = "event"
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
)

type pendingCall struct {
	command string
	done    chan *frame
}

type handlerEntry struct {
	stream string
	fn     func(Event)
}

// Conn is a live connection to the daemon. It owns a single reader
// goroutine; event handlers run on that goroutine in arrival order and
// must not block.
type Conn struct {
	addr       string
	timeout    time.Duration
	logger     *zap.Logger
	dialer     *websocket.Dialer
	mu         sync.Mutex
	ws         *websocket.Conn
	writeMu    sync.Mutex
	pending    map[string]*pendingCall
	handlers   map[uint64]*handlerEntry
	nextHandle uint64
	closed     bool
}

// Connect dials the daemon and starts the reader goroutine. The initial
// dial is retried with exponential backoff until ctx is cancelled.
func Connect(ctx context.Context, addr string, timeout time.Duration, logger *zap.Logger) (*Conn, error) {
	c := &Conn{
		addr:     addr,
		timeout:  timeout,
		logger:   logger.Named("daemon"),
		dialer:   &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		pending:  make(map[string]*pendingCall),
		handlers: make(map[uint64]*handlerEntry),
	}

	if err := c.dial(ctx); err != nil {
		return nil, err
	}

	go c.readLoop()

	return c, nil
}

// dial establishes the websocket with backoff and replays subscriptions
// for every stream that still has registered handlers.
func (c *Conn) dial(ctx context.Context) error {
	operation := func() (*websocket.Conn, error) {
		ws, _, err := c.dialer.DialContext(ctx, c.addr, nil)
		if err != nil {
			c.logger.Debug("Daemon dial failed", zap.Error(err))
			return nil, err
		}

		return ws, nil
	}

	ws, err := backoff.RetryWithData(operation, backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(30*time.Second),
	), ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to daemon at %s: %w", c.addr, err)
	}

	c.mu.Lock()
	if c.closed {
		// Close ran while the dial was in flight; it closed the previous
		// socket, so this one is ours to release.
		c.mu.Unlock()
		ws.Close()

		return ErrConnClosed
	}

	c.ws = ws
	streams := c.activeStreams()
	c.mu.Unlock()

	for _, stream := range streams {
		if err := c.writeFrame(&frame{Type: frameSubscribe, Stream: stream}); err != nil {
			c.logger.Warn("Failed to replay subscription", zap.String("stream", stream), zap.Error(err))
		}
	}

	c.logger.Info("Connected to daemon", zap.String("addr", c.addr))

	return nil
}

// Call dispatches a command and decodes the success payload into out.
// The daemon either fully applies a command or fully rejects it; there is
// no partial application and no retry at this layer.
func (c *Conn) Call(ctx context.Context, command string, payload, out any) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", command, err)
	}

	call := &pendingCall{command: command, done: make(chan *frame, 1)}
	id := uuid.New().String()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}

	c.pending[id] = call
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := &frame{Type: frameRequest, ID: id, Command: command, Payload: body}
	if err := c.writeFrame(req); err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-call.done:
		if resp == nil {
			return ErrConnClosed
		}

		if !resp.OK {
			return &CommandError{Command: command, Message: resp.Error}
		}

		if out != nil && len(resp.Payload) > 0 {
			if err := sonic.Unmarshal(resp.Payload, out); err != nil {
				return fmt.Errorf("failed to decode %s response: %w", command, err)
			}
		}

		return nil
	case <-timer.C:
		return fmt.Errorf("%w: %s after %s", ErrCallTimeout, command, c.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers fn for one document stream and returns an
// unsubscribe function. The first handler for a stream sends the
// subscribe frame; the last one removed sends unsubscribe. The returned
// function is idempotent, so deferring it on every exit path is safe.
func (c *Conn) Subscribe(stream string, fn func(Event)) (func(), error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnClosed
	}

	first := c.streamHandlerCount(stream) == 0
	handle := c.nextHandle
	c.nextHandle++
	c.handlers[handle] = &handlerEntry{stream: stream, fn: fn}
	c.mu.Unlock()

	if first {
		if err := c.writeFrame(&frame{Type: frameSubscribe, Stream: stream}); err != nil {
			c.mu.Lock()
			delete(c.handlers, handle)
			c.mu.Unlock()

			return nil, fmt.Errorf("failed to subscribe to %s stream: %w", stream, err)
		}
	}

	var once sync.Once

	unsubscribe := func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, handle)
			last := c.streamHandlerCount(stream) == 0 && !c.closed
			c.mu.Unlock()

			if last {
				if err := c.writeFrame(&frame{Type: frameUnsubscribe, Stream: stream}); err != nil {
					c.logger.Warn("Failed to send unsubscribe",
						zap.String("stream", stream), zap.Error(err))
				}
			}
		})
	}

	return unsubscribe, nil
}

// Close shuts the connection down and fails every pending call.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}

	c.closed = true
	ws := c.ws
	c.failPendingLocked()
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}

	return nil
}

// readLoop reads frames until the connection is closed, reconnecting with
// backoff on transport failure. Running all dispatch on this one goroutine
// keeps event handling run-to-completion: two notifications on the same
// stream are never interleaved mid-update.
func (c *Conn) readLoop() {
	for {
		c.mu.Lock()
		ws := c.ws
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed = c.closed
			c.failPendingLocked()
			c.mu.Unlock()

			if closed {
				return
			}

			c.logger.Warn("Daemon connection lost, reconnecting", zap.Error(err))

			if err := c.dial(context.Background()); err != nil {
				if !errors.Is(err, ErrConnClosed) {
					c.logger.Error("Failed to reconnect to daemon", zap.Error(err))
				}

				return
			}

			continue
		}

		var f frame
		if err := sonic.Unmarshal(data, &f); err != nil {
			// A single malformed frame must not halt the subscription.
			c.logger.Warn("Discarding malformed frame from daemon", zap.Error(err))
			continue
		}

		c.dispatch(&f)
	}
}

// dispatch routes one inbound frame.
func (c *Conn) dispatch(f *frame) {
	switch f.Type {
	case frameResponse:
		c.mu.Lock()
		call, ok := c.pending[f.ID]

		if ok {
			delete(c.pending, f.ID)
		}
		c.mu.Unlock()

		if ok {
			call.done <- f
		}
	case frameEvent:
		c.mu.Lock()
		handlers := make([]func(Event), 0, len(c.handlers))

		for _, entry := range c.handlers {
			if entry.stream == f.Stream {
				handlers = append(handlers, entry.fn)
			}
		}
		c.mu.Unlock()

		ev := Event{Stream: f.Stream, Name: f.Event, Payload: f.Payload}
		for _, fn := range handlers {
			fn(ev)
		}
	default:
		c.logger.Warn("Unrecognized frame from daemon", zap.String("type", f.Type))
	}
}

func (c *Conn) writeFrame(f *frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return ErrConnClosed
	}

	data, err := sonic.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	return ws.WriteMessage(websocket.TextMessage, data)
}

// failPendingLocked wakes every waiting caller with a closed marker.
// Callers must hold mu.
func (c *Conn) failPendingLocked() {
	for id, call := range c.pending {
		call.done <- nil

		delete(c.pending, id)
	}
}

// streamHandlerCount counts handlers for a stream. Callers must hold mu.
func (c *Conn) streamHandlerCount(stream string) int {
	count := 0

	for _, entry := range c.handlers {
		if entry.stream == stream {
			count++
		}
	}

	return count
}

// activeStreams returns streams with at least one handler. Callers must
// hold mu.
func (c *Conn) activeStreams() []string {
	seen := make(map[string]struct{})

	for _, entry := range c.handlers {
		seen[entry.stream] = struct{}{}
	}

	streams := make([]string, 0, len(seen))
	for stream := range seen {
		streams = append(streams, stream)
	}

	return streams
}
