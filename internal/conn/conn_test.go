package conn

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type trickleStream struct {
	in         *bytes.Reader
	out        bytes.Buffer
	maxWrite   int
	writes     int
	closes     int
	halfCloses int
}

func (s *trickleStream) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return s.in.Read(p)
}

func (s *trickleStream) Write(p []byte) (int, error) {
	s.writes++
	if len(p) > s.maxWrite {
		p = p[:s.maxWrite]
	}
	return s.out.Write(p)
}

func (s *trickleStream) Close() error {
	s.closes++
	return nil
}

func (s *trickleStream) CloseWrite() error {
	s.halfCloses++
	return nil
}

func TestWriteAllResumesShortWrites(t *testing.T) {
	stream := &trickleStream{in: bytes.NewReader(nil), maxWrite: 3}
	c := New(stream)

	payload := []byte("i3-ipc\x02\x00\x00\x00\x00\x00\x00\x00[]")
	n, err := c.WriteAll(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, stream.out.Bytes())
	require.Equal(t, 6, stream.writes)
}

func TestReadSomeReturnsPartialThenEOF(t *testing.T) {
	stream := &trickleStream{in: bytes.NewReader([]byte("ab")), maxWrite: 1}
	c := New(stream)

	buf := make([]byte, 8)
	n, err := c.ReadSome(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte('a'), buf[0])

	n, err = c.ReadSome(context.Background(), buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = c.ReadSome(context.Background(), buf)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, n)
}

func TestShutdownIsIdempotentAndHalfCloses(t *testing.T) {
	stream := &trickleStream{in: bytes.NewReader(nil), maxWrite: 1}
	c := New(stream)

	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())
	require.Equal(t, 1, stream.halfCloses)
	require.Zero(t, stream.closes)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.Equal(t, 1, stream.closes)
}

func TestReadSomeCancelledByContext(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	c := New(client)
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.ReadSome(ctx, make([]byte, 4))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, c.Interrupted())
}

func TestReadSomeAlreadyCancelled(t *testing.T) {
	stream := &trickleStream{in: bytes.NewReader([]byte("x")), maxWrite: 1}
	c := New(stream)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := c.ReadSome(ctx, make([]byte, 1))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, n)
	require.False(t, c.Interrupted())
}

func TestWriteSomeWrapsStreamErrors(t *testing.T) {
	client, server := net.Pipe()
	require.NoError(t, server.Close())
	c := New(client)
	defer c.Close()

	_, err := c.WriteSome(context.Background(), []byte("i3-ipc"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, "write", ioErr.Op)
}

func TestDialUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipc.sock")
	listener, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, acceptErr := listener.Accept()
		if acceptErr == nil {
			accepted <- c
		}
	}()

	c, err := Dial(context.Background(), path, 200*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	peer := <-accepted
	defer peer.Close()

	_, err = c.WriteAll(context.Background(), []byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(peer, buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf))

	require.NoError(t, c.Shutdown())
	_, err = peer.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestDialMissingSocket(t *testing.T) {
	_, err := Dial(context.Background(), filepath.Join(t.TempDir(), "missing.sock"), 100*time.Millisecond)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	require.True(t, errors.Is(err, ioErr.Err))
}
