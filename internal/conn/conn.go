// Package conn adapts duplex byte streams to the partial read/write
// primitives the IPC exchange is built on.
package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Stream is any duplex byte stream; net.Conn satisfies it.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

type halfCloser interface {
	CloseWrite() error
}

type readDeadliner interface {
	SetReadDeadline(time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(time.Time) error
}

// IOError wraps a failure of the underlying stream.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// maxEmptyOps bounds consecutive zero-progress reads or writes without an error.
const maxEmptyOps = 100

var interrupted = time.Unix(1, 0)

// Conn owns one stream. It is safe to call Shutdown and Close concurrently
// with a blocked read or write; everything else expects a single caller.
//
// A cancellation that interrupts a blocked read or write leaves the stream
// with a past deadline or closed, so the Conn must not be reused afterwards.
type Conn struct {
	s Stream

	interrupted atomic.Bool

	shutdownOnce sync.Once
	shutdownErr  error
	closeOnce    sync.Once
	closeErr     error
}

// New wraps s.
func New(s Stream) *Conn {
	return &Conn{s: s}
}

// Dial connects to the unix socket at path.
func Dial(ctx context.Context, path string, timeout time.Duration) (*Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	c, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &IOError{Op: "dial " + path, Err: err}
	}
	return New(c), nil
}

// ReadSome reads whatever is available into p, suspending until at least
// one byte arrives, the peer closes (io.EOF), or ctx is done.
func (c *Conn) ReadSome(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stop := c.watch(ctx, c.interruptRead)
	n, err := c.read(p)
	if !stop() {
		return n, ctx.Err()
	}
	if err == nil || errors.Is(err, io.EOF) {
		return n, err
	}
	return n, &IOError{Op: "read", Err: err}
}

func (c *Conn) read(p []byte) (int, error) {
	for i := 0; i < maxEmptyOps; i++ {
		n, err := c.s.Read(p)
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, io.ErrNoProgress
}

// WriteSome performs one write and reports how much of p the stream took.
func (c *Conn) WriteSome(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	stop := c.watch(ctx, c.interruptWrite)
	n, err := c.s.Write(p)
	if !stop() {
		return n, ctx.Err()
	}
	if err != nil {
		return n, &IOError{Op: "write", Err: err}
	}
	return n, nil
}

// WriteAll writes p in full, resuming after short writes at the first
// unwritten byte. It returns the number of bytes written.
func (c *Conn) WriteAll(ctx context.Context, p []byte) (int, error) {
	written := 0
	empty := 0
	for written < len(p) {
		n, err := c.WriteSome(ctx, p[written:])
		written += n
		if err != nil {
			return written, err
		}
		if n == 0 {
			empty++
			if empty >= maxEmptyOps {
				return written, &IOError{Op: "write", Err: io.ErrShortWrite}
			}
			continue
		}
		empty = 0
	}
	return written, nil
}

// Shutdown closes the write half of the stream, or the whole stream when it
// cannot be half-closed. Later calls return the first result.
func (c *Conn) Shutdown() error {
	c.shutdownOnce.Do(func() {
		if hc, ok := c.s.(halfCloser); ok {
			if err := hc.CloseWrite(); err != nil && !errors.Is(err, net.ErrClosed) {
				c.shutdownErr = &IOError{Op: "shutdown", Err: err}
			}
			return
		}
		c.shutdownErr = c.Close()
	})
	return c.shutdownErr
}

// Close releases the stream. Later calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if err := c.s.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.closeErr = &IOError{Op: "close", Err: err}
		}
	})
	return c.closeErr
}

// watch runs interrupt once ctx is done. The returned stop reports false
// when the interrupt already fired.
func (c *Conn) watch(ctx context.Context, interrupt func()) func() bool {
	if ctx.Done() == nil {
		return func() bool { return true }
	}
	return context.AfterFunc(ctx, interrupt)
}

// Interrupted reports whether a cancellation ever cut into a blocked read
// or write on this Conn.
func (c *Conn) Interrupted() bool {
	return c.interrupted.Load()
}

func (c *Conn) interruptRead() {
	c.interrupted.Store(true)
	if d, ok := c.s.(readDeadliner); ok && d.SetReadDeadline(interrupted) == nil {
		return
	}
	_ = c.Close()
}

func (c *Conn) interruptWrite() {
	c.interrupted.Store(true)
	if d, ok := c.s.(writeDeadliner); ok && d.SetWriteDeadline(interrupted) == nil {
		return
	}
	_ = c.Close()
}
