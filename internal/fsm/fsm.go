// Package fsm defines the legal lifecycle of one IPC client session.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle        State = "idle"
	StateExchanging  State = "exchanging"
	StateSubscribing State = "subscribing"
	StateSubscribed  State = "subscribed"
	StateBroken      State = "broken"
	StateClosed      State = "closed"
)

const (
	EventRequest   Event = "request"
	EventReply     Event = "reply"
	EventSubscribe Event = "subscribe"
	EventAck       Event = "ack"
	EventReject    Event = "reject"
	EventAbort     Event = "abort"
	EventFail      Event = "fail"
	EventClose     Event = "close"
)

// Transition returns the state reached from current on event.
func Transition(current State, event Event) (State, error) {
	switch event {
	case EventClose:
		return StateClosed, nil
	case EventFail:
		if current == StateClosed {
			return StateClosed, nil
		}
		return StateBroken, nil
	}

	switch current {
	case StateIdle:
		switch event {
		case EventRequest:
			return StateExchanging, nil
		case EventSubscribe:
			return StateSubscribing, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateExchanging:
		switch event {
		case EventReply, EventAbort:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSubscribing:
		switch event {
		case EventAck:
			return StateSubscribed, nil
		case EventReject, EventAbort:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateSubscribed, StateBroken, StateClosed:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
