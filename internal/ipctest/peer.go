// Package ipctest runs a scripted window-manager peer on a unix socket for
// tests of code that talks the IPC protocol.
package ipctest

import (
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rbright/i3ipc/internal/wire"
)

// Handler scripts one accepted connection.
type Handler func(*PeerConn)

// Peer accepts connections and hands each one to a Handler.
type Peer struct {
	Path string

	listener net.Listener
	handler  Handler
	wg       sync.WaitGroup
	once     sync.Once
}

// NewPeer listens on a fresh socket in t.TempDir and stops when the test ends.
func NewPeer(t testing.TB, handler Handler) *Peer {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ipc.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen %s: %v", path, err)
	}

	p := &Peer{Path: path, listener: listener, handler: handler}
	p.wg.Add(1)
	go p.serve(t)
	t.Cleanup(p.Stop)
	return p
}

// Stop closes the listener and waits for running handlers.
func (p *Peer) Stop() {
	p.once.Do(func() {
		_ = p.listener.Close()
	})
	p.wg.Wait()
}

func (p *Peer) serve(t testing.TB) {
	defer p.wg.Done()
	for {
		c, err := p.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				t.Errorf("accept peer connection: %v", err)
			}
			return
		}

		p.wg.Add(1)
		go func(c net.Conn) {
			defer p.wg.Done()
			defer c.Close()
			p.handler(&PeerConn{t: t, c: c})
		}(c)
	}
}

// PeerConn is the peer's side of one connection.
type PeerConn struct {
	t testing.TB
	c net.Conn
}

// Conn exposes the raw connection.
func (pc *PeerConn) Conn() net.Conn {
	return pc.c
}

// ReadFrame reads one frame from the client. It returns io.EOF when the
// client has closed its write half.
func (pc *PeerConn) ReadFrame() (wire.Frame, error) {
	var d wire.Decoder
	for !d.Ready() {
		n, err := pc.c.Read(d.Next())
		if n > 0 {
			if advErr := d.Advance(n); advErr != nil {
				return wire.Frame{}, advErr
			}
		}
		if d.Ready() {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) && !d.Started() {
				return wire.Frame{}, io.EOF
			}
			return wire.Frame{}, fmt.Errorf("read frame: %w", err)
		}
	}
	frame, _ := d.Frame()
	return frame, nil
}

// MustReadFrame reads one frame and fails the test on error.
func (pc *PeerConn) MustReadFrame() wire.Frame {
	frame, err := pc.ReadFrame()
	if err != nil {
		pc.t.Errorf("peer read frame: %v", err)
	}
	return frame
}

// WriteFrame sends one complete frame.
func (pc *PeerConn) WriteFrame(typeCode uint32, payload string) error {
	return pc.WriteRaw(wire.Encode(typeCode, payload))
}

// WriteRaw sends b as is.
func (pc *PeerConn) WriteRaw(b []byte) error {
	_, err := pc.c.Write(b)
	return err
}

// WriteChunked sends one frame split into writes of at most size bytes,
// pausing between them so the client sees partial reads.
func (pc *PeerConn) WriteChunked(typeCode uint32, payload string, size int) error {
	if size <= 0 {
		size = 1
	}
	b := wire.Encode(typeCode, payload)
	for len(b) > 0 {
		n := min(size, len(b))
		if err := pc.WriteRaw(b[:n]); err != nil {
			return err
		}
		b = b[n:]
		time.Sleep(time.Millisecond)
	}
	return nil
}

// Reply answers every request with reply(frame) until the client hangs up.
func Reply(reply func(wire.Frame) (uint32, string)) Handler {
	return func(pc *PeerConn) {
		for {
			frame, err := pc.ReadFrame()
			if err != nil {
				return
			}
			typeCode, payload := reply(frame)
			if err := pc.WriteFrame(typeCode, payload); err != nil {
				return
			}
		}
	}
}
