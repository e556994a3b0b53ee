package ipc

import (
	"context"
	"errors"
	"fmt"

	"github.com/rbright/i3ipc/internal/conn"
	"github.com/rbright/i3ipc/internal/protocol"
	"github.com/rbright/i3ipc/internal/wire"
)

var (
	ErrBusy              = errors.New("ipc: another exchange is in progress on this connection")
	ErrSubscribed        = errors.New("ipc: connection is in subscription mode")
	ErrBroken            = errors.New("ipc: connection lost frame alignment and cannot be reused")
	ErrClosed            = errors.New("ipc: connection closed")
	ErrNoRequest         = errors.New("ipc: no request is awaiting a reply")
	ErrSubscribeRejected = errors.New("ipc: subscription rejected")
	ErrNoEvents          = errors.New("ipc: subscription needs at least one event type")
)

// DeserializeError reports a payload that did not decode into the target type.
type DeserializeError struct {
	Type uint32
	Raw  []byte
	Err  error
}

func (e *DeserializeError) Error() string {
	return fmt.Sprintf("decode payload of type 0x%08x (%d bytes): %v", e.Type, len(e.Raw), e.Err)
}

func (e *DeserializeError) Unwrap() error {
	return e.Err
}

// UnexpectedEventTypeError reports a frame the session should not see at
// this point: an event outside the subscribed set, a reply while subscribed,
// or anything but the awaited reply.
type UnexpectedEventTypeError struct {
	Code uint32
	// Awaiting names the expected reply type, when there was one.
	Awaiting fmt.Stringer
}

func (e *UnexpectedEventTypeError) Error() string {
	isEvent, value := protocol.SplitCode(e.Code)
	if e.Awaiting != nil {
		got := "reply " + protocol.MsgType(value).String()
		if isEvent {
			got = "event " + protocol.EventType(value).String()
		}
		return fmt.Sprintf("unexpected %s while awaiting %s reply", got, e.Awaiting)
	}
	if !isEvent {
		return fmt.Sprintf("unexpected reply frame %s while subscribed", protocol.MsgType(value))
	}
	return fmt.Sprintf("unexpected event %s outside the subscribed set", protocol.EventType(value))
}

// ErrorKind classifies err into a short stable label for logs and metrics.
func ErrorKind(err error) string {
	var (
		badMagic   *wire.BadMagicError
		decode     *DeserializeError
		unexpected *UnexpectedEventTypeError
		ioErr      *conn.IOError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &badMagic):
		return "bad_magic"
	case errors.Is(err, wire.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(err, wire.ErrPayloadTooLarge):
		return "too_large"
	case errors.As(err, &decode):
		return "decode"
	case errors.As(err, &unexpected):
		return "unexpected_event"
	case errors.Is(err, ErrSubscribeRejected):
		return "rejected"
	case errors.Is(err, ErrBusy), errors.Is(err, ErrSubscribed), errors.Is(err, ErrBroken),
		errors.Is(err, ErrClosed), errors.Is(err, ErrNoRequest):
		return "state"
	case errors.As(err, &ioErr):
		return "io"
	default:
		return "other"
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
