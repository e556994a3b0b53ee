package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionExchangeCycle(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventRequest)
	require.NoError(t, err)
	require.Equal(t, StateExchanging, next)

	next, err = Transition(next, EventReply)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)
}

func TestTransitionSubscribeAckAndReject(t *testing.T) {
	next, err := Transition(StateIdle, EventSubscribe)
	require.NoError(t, err)
	require.Equal(t, StateSubscribing, next)

	acked, err := Transition(next, EventAck)
	require.NoError(t, err)
	require.Equal(t, StateSubscribed, acked)

	rejected, err := Transition(next, EventReject)
	require.NoError(t, err)
	require.Equal(t, StateIdle, rejected)
}

func TestTransitionAbortReturnsToIdle(t *testing.T) {
	for _, state := range []State{StateExchanging, StateSubscribing} {
		next, err := Transition(state, EventAbort)
		require.NoError(t, err)
		require.Equal(t, StateIdle, next)
	}

	_, err := Transition(StateSubscribed, EventAbort)
	require.Error(t, err)
}

func TestTransitionFailFromOpenStatesGoesBroken(t *testing.T) {
	states := []State{StateIdle, StateExchanging, StateSubscribing, StateSubscribed, StateBroken}
	for _, state := range states {
		next, err := Transition(state, EventFail)
		require.NoError(t, err)
		require.Equal(t, StateBroken, next)
	}

	next, err := Transition(StateClosed, EventFail)
	require.NoError(t, err)
	require.Equal(t, StateClosed, next)
}

func TestTransitionCloseFromAnyState(t *testing.T) {
	states := []State{StateIdle, StateExchanging, StateSubscribing, StateSubscribed, StateBroken, StateClosed}
	for _, state := range states {
		next, err := Transition(state, EventClose)
		require.NoError(t, err)
		require.Equal(t, StateClosed, next)
	}
}

func TestTransitionMatrixInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{name: "idle reply", state: StateIdle, event: EventReply},
		{name: "idle ack", state: StateIdle, event: EventAck},
		{name: "exchanging request", state: StateExchanging, event: EventRequest},
		{name: "exchanging subscribe", state: StateExchanging, event: EventSubscribe},
		{name: "subscribing request", state: StateSubscribing, event: EventRequest},
		{name: "subscribed request", state: StateSubscribed, event: EventRequest},
		{name: "subscribed subscribe", state: StateSubscribed, event: EventSubscribe},
		{name: "broken request", state: StateBroken, event: EventRequest},
		{name: "closed request", state: StateClosed, event: EventRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Transition(tc.state, tc.event)
			require.Equal(t, tc.state, next)
			require.Error(t, err)
			require.Contains(t, err.Error(), "invalid transition")
		})
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventRequest)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}
