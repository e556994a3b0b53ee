package ipc

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/i3ipc/internal/protocol"
	"github.com/rbright/i3ipc/internal/wire"
)

// MsgResponse is one decoded reply.
type MsgResponse[D any] struct {
	MsgType protocol.MsgType
	Payload D
}

// EventResponse is one decoded event notification.
type EventResponse[D any] struct {
	EvtType protocol.EventType
	Payload D
}

// Exchange sends one command and decodes its reply into D.
func Exchange[D any](ctx context.Context, c *Client, msg protocol.MsgType, payload string) (MsgResponse[D], error) {
	started := time.Now()

	resp, err := exchange[D](ctx, c, msg, payload)

	elapsed := time.Since(started)
	kind := ErrorKind(err)
	c.observer.ObserveExchange(msg, elapsed, kind)
	if err != nil {
		c.logger.Warn("ipc exchange failed",
			"msg_type", msg.String(),
			"kind", kind,
			"duration_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)
		return resp, err
	}
	c.logger.Debug("ipc exchange",
		"msg_type", msg.String(),
		"reply_type", resp.MsgType.String(),
		"request_bytes", len(payload),
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

func exchange[D any](ctx context.Context, c *Client, msg protocol.MsgType, payload string) (MsgResponse[D], error) {
	if err := c.SendMsg(ctx, msg, payload); err != nil {
		return MsgResponse[D]{}, err
	}
	return ReceiveMsg[D](ctx, c)
}

func receive[D any](ctx context.Context, c *Client) (MsgResponse[D], error) {
	frame, err := c.readFrame(ctx)
	if err != nil {
		return MsgResponse[D]{}, err
	}
	resp := MsgResponse[D]{MsgType: protocol.MsgType(frame.Type)}
	resp.Payload, err = decodePayload[D](frame)
	return resp, err
}

func decodePayload[D any](frame wire.Frame) (D, error) {
	var out D
	if err := payloadAPI.Unmarshal(frame.Payload, &out); err != nil {
		return out, fmt.Errorf("decode: %w", &DeserializeError{Type: frame.Type, Raw: frame.Payload, Err: err})
	}
	return out, nil
}
