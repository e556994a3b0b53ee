package ipc

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rbright/i3ipc/internal/fsm"
	"github.com/rbright/i3ipc/internal/protocol"
)

// SubscribeOption customizes a subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	strict bool
}

// WithStrictEvents ends the subscription when the peer sends an event kind
// that was not subscribed to. By default such events are delivered.
func WithStrictEvents() SubscribeOption {
	return func(o *subscribeOptions) {
		o.strict = true
	}
}

// Subscription is an unbounded, single-pass sequence of events. The first
// error it returns is terminal and is returned again by every later call.
type Subscription[D any] struct {
	client *Client
	events map[protocol.EventType]struct{}
	strict bool

	closed atomic.Bool
	// mu serializes Next; errMu guards err so Err never waits on a read.
	mu    sync.Mutex
	errMu sync.Mutex
	err   error
}

// Subscribe asks the peer for events and switches the session to
// subscription mode once the peer acknowledges. A rejected subscription
// leaves the session idle and reads no event frame.
func Subscribe[D any](ctx context.Context, c *Client, events []protocol.EventType, opts ...SubscribeOption) (*Subscription[D], error) {
	var options subscribeOptions
	for _, opt := range opts {
		opt(&options)
	}

	payload, set, err := subscribePayload(events)
	if err != nil {
		return nil, err
	}

	if err := c.transition(fsm.EventSubscribe); err != nil {
		return nil, err
	}
	if wrote, err := c.send(ctx, protocol.Subscribe, payload); err != nil {
		c.abandon(err, wrote, fsm.EventReject)
		return nil, err
	}

	frame, err := c.readFrame(ctx)
	if err != nil {
		c.abandon(err, true, fsm.EventReject)
		return nil, fmt.Errorf("subscribe acknowledgement: %w", err)
	}
	if frame.Type != protocol.Subscribe.Code() {
		// Anything but the SUBSCRIBE reply here means the peer and the session
		// disagree about the stream.
		c.fail()
		err := &UnexpectedEventTypeError{Code: frame.Type, Awaiting: protocol.Subscribe}
		c.logger.Warn("ipc subscription failed", "kind", ErrorKind(err), "error", err.Error())
		return nil, fmt.Errorf("subscribe acknowledgement: %w", err)
	}
	ack, err := decodePayload[protocol.Success](frame)
	if err != nil {
		c.abandon(err, true, fsm.EventReject)
		return nil, fmt.Errorf("subscribe acknowledgement: %w", err)
	}
	if !ack.Success {
		_ = c.transition(fsm.EventReject)
		c.logger.Warn("ipc subscription rejected", "events", payload, "reason", ack.Error)
		if reason := strings.TrimSpace(ack.Error); reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrSubscribeRejected, reason)
		}
		return nil, ErrSubscribeRejected
	}
	if err := c.transition(fsm.EventAck); err != nil {
		return nil, err
	}

	c.logger.Info("ipc subscribed", "events", payload, "strict", options.strict)
	return &Subscription[D]{client: c, events: set, strict: options.strict}, nil
}

func subscribePayload(events []protocol.EventType) (string, map[protocol.EventType]struct{}, error) {
	if len(events) == 0 {
		return "", nil, ErrNoEvents
	}
	unique := make([]protocol.EventType, 0, len(events))
	set := make(map[protocol.EventType]struct{}, len(events))
	for _, evt := range events {
		if !evt.Known() {
			return "", nil, fmt.Errorf("ipc: cannot subscribe to %s", evt)
		}
		if _, dup := set[evt]; dup {
			continue
		}
		set[evt] = struct{}{}
		unique = append(unique, evt)
	}
	payload, err := payloadAPI.MarshalToString(unique)
	if err != nil {
		return "", nil, fmt.Errorf("encode subscribe payload: %w", err)
	}
	return payload, set, nil
}

// Next blocks until the next event arrives.
func (s *Subscription[D]) Next(ctx context.Context) (EventResponse[D], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Err(); err != nil {
		return EventResponse[D]{}, err
	}
	evt, err := s.next(ctx)
	if err != nil {
		return EventResponse[D]{}, s.terminate(err)
	}
	return evt, nil
}

func (s *Subscription[D]) next(ctx context.Context) (EventResponse[D], error) {
	frame, err := s.client.readFrame(ctx)
	if err != nil {
		return EventResponse[D]{}, err
	}

	isEvent, value := protocol.SplitCode(frame.Type)
	if !isEvent {
		return EventResponse[D]{}, &UnexpectedEventTypeError{Code: frame.Type}
	}
	evtType := protocol.EventType(value)
	if s.strict {
		if _, ok := s.events[evtType]; !ok {
			return EventResponse[D]{}, &UnexpectedEventTypeError{Code: frame.Type}
		}
	}

	payload, err := decodePayload[D](frame)
	if err != nil {
		return EventResponse[D]{}, err
	}
	s.client.observer.ObserveEvent(evtType, len(frame.Payload))
	return EventResponse[D]{EvtType: evtType, Payload: payload}, nil
}

func (s *Subscription[D]) terminate(err error) error {
	if s.closed.Load() {
		err = ErrClosed
	}
	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()

	s.client.fail()
	if err != ErrClosed {
		s.client.logger.Warn("ipc subscription ended", "kind", ErrorKind(err), "error", err.Error())
	}
	return err
}

// Events adapts the subscription to a range-over-func sequence. A terminal
// error is yielded once as the last element; leaving the loop early closes
// the subscription.
func (s *Subscription[D]) Events(ctx context.Context) iter.Seq2[EventResponse[D], error] {
	return func(yield func(EventResponse[D], error) bool) {
		defer s.Close()
		for {
			evt, err := s.Next(ctx)
			if err != nil {
				yield(evt, err)
				return
			}
			if !yield(evt, nil) {
				return
			}
		}
	}
}

// Close stops the subscription and releases the connection. It may be
// called while Next is blocked.
func (s *Subscription[D]) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

// Err returns the terminal error, if the subscription has ended. It does not
// wait for a blocked Next.
func (s *Subscription[D]) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}
