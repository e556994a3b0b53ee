// Package ipc speaks the i3 IPC protocol over one connection: request/reply
// exchanges and event subscriptions.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/rbright/i3ipc/internal/conn"
	"github.com/rbright/i3ipc/internal/fsm"
	"github.com/rbright/i3ipc/internal/protocol"
	"github.com/rbright/i3ipc/internal/wire"
)

var payloadAPI = sonic.ConfigStd

// Client is one session on a window-manager socket. The protocol carries no
// request ids, so a Client runs at most one exchange at a time and, once
// subscribed, only reads events.
type Client struct {
	conn       *conn.Conn
	logger     *slog.Logger
	observer   Observer
	maxPayload uint32
	id         string

	mu    sync.Mutex
	state fsm.State
}

// Option customizes a Client.
type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Client) {
		if observer != nil {
			c.observer = observer
		}
	}
}

// WithMaxPayload caps the payload length accepted from the peer.
func WithMaxPayload(n uint32) Option {
	return func(c *Client) {
		c.maxPayload = n
	}
}

// NewClient starts a session over an already connected stream.
func NewClient(stream conn.Stream, opts ...Option) *Client {
	return newClient(conn.New(stream), opts)
}

// Connect dials the unix socket at path and starts a session on it.
func Connect(ctx context.Context, path string, timeout time.Duration, opts ...Option) (*Client, error) {
	cn, err := conn.Dial(ctx, path, timeout)
	if err != nil {
		return nil, err
	}
	c := newClient(cn, opts)
	c.logger.Debug("ipc connected", "socket", path)
	return c, nil
}

func newClient(cn *conn.Conn, opts []Option) *Client {
	c := &Client{
		conn:       cn,
		logger:     slog.New(slog.DiscardHandler),
		observer:   nopObserver{},
		maxPayload: wire.DefaultMaxPayload,
		id:         uuid.NewString(),
		state:      fsm.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session", c.id)
	return c
}

// ID returns the session id attached to log records.
func (c *Client) ID() string {
	return c.id
}

// State returns the current session state.
func (c *Client) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close shuts the connection down and releases it.
func (c *Client) Close() error {
	c.mu.Lock()
	c.state, _ = fsm.Transition(c.state, fsm.EventClose)
	c.mu.Unlock()

	shutdownErr := c.conn.Shutdown()
	closeErr := c.conn.Close()
	return errors.Join(shutdownErr, closeErr)
}

// SendMsg writes one command frame and leaves the session waiting for its
// reply, which ReceiveMsg collects.
func (c *Client) SendMsg(ctx context.Context, msg protocol.MsgType, payload string) error {
	if err := c.transition(fsm.EventRequest); err != nil {
		return err
	}
	if wrote, err := c.send(ctx, msg, payload); err != nil {
		c.abandon(err, wrote, fsm.EventReply)
		return err
	}
	return nil
}

// ReceiveMsg reads the reply to the last SendMsg and decodes it into D.
func ReceiveMsg[D any](ctx context.Context, c *Client) (MsgResponse[D], error) {
	if err := c.expect(fsm.StateExchanging); err != nil {
		return MsgResponse[D]{}, err
	}
	resp, err := receive[D](ctx, c)
	if err != nil {
		c.abandon(err, true, fsm.EventReply)
		return resp, err
	}
	_ = c.transition(fsm.EventReply)
	return resp, nil
}

func (c *Client) send(ctx context.Context, msg protocol.MsgType, payload string) (bool, error) {
	frame := wire.Encode(msg.Code(), payload)
	n, err := c.conn.WriteAll(ctx, frame)
	if n > 0 {
		c.observer.ObserveTraffic(DirectionSent, n)
	}
	if err != nil {
		return n > 0, fmt.Errorf("send %s: %w", msg, err)
	}
	return true, nil
}

// readFrame accumulates exactly one frame, reading no further than its end.
func (c *Client) readFrame(ctx context.Context) (wire.Frame, error) {
	d := wire.Decoder{MaxPayload: c.maxPayload}
	for !d.Ready() {
		stage := d.Stage()
		n, err := c.conn.ReadSome(ctx, d.Next())
		if n > 0 {
			c.observer.ObserveTraffic(DirectionReceived, n)
			if advanceErr := d.Advance(n); advanceErr != nil {
				return wire.Frame{}, fmt.Errorf("receive %s: %w", stage, advanceErr)
			}
		}
		if d.Ready() {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = wire.ErrUnexpectedEOF
			}
			return wire.Frame{}, fmt.Errorf("receive %s: %w", d.Stage(), err)
		}
	}
	frame, _ := d.Frame()
	return frame, nil
}

func (c *Client) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return sessionError(c.state, err)
	}
	c.state = next
	return nil
}

func (c *Client) expect(state fsm.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == state {
		return nil
	}
	if c.state == fsm.StateIdle {
		return ErrNoRequest
	}
	return sessionError(c.state, nil)
}

// abandon settles an in-flight exchange after err. Nothing on the wire, or a
// fully consumed frame, keeps the session usable; anything else leaves the
// stream misaligned, so it is shut down. A cancellation that interrupted
// blocked I/O always breaks the session since the stream was disturbed.
func (c *Client) abandon(err error, wrote bool, aligned fsm.Event) {
	var decodeErr *DeserializeError
	switch {
	case c.conn.Interrupted():
		c.fail()
	case !wrote && isContextErr(err):
		_ = c.transition(fsm.EventAbort)
	case errors.As(err, &decodeErr):
		_ = c.transition(aligned)
	default:
		c.fail()
	}
}

func (c *Client) fail() {
	_ = c.transition(fsm.EventFail)
	_ = c.conn.Shutdown()
}

func sessionError(state fsm.State, cause error) error {
	switch state {
	case fsm.StateExchanging, fsm.StateSubscribing:
		return ErrBusy
	case fsm.StateSubscribed:
		return ErrSubscribed
	case fsm.StateBroken:
		return ErrBroken
	case fsm.StateClosed:
		return ErrClosed
	}
	if cause != nil {
		return cause
	}
	return fmt.Errorf("ipc: unexpected session state %q", state)
}
