package ipc

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/i3ipc/internal/fsm"
	"github.com/rbright/i3ipc/internal/ipctest"
	"github.com/rbright/i3ipc/internal/protocol"
	"github.com/rbright/i3ipc/internal/wire"
)

func subscribePeer(t *testing.T, script func(*ipctest.PeerConn)) (*ipctest.Peer, chan wire.Frame) {
	t.Helper()
	requests := make(chan wire.Frame, 1)
	peer := ipctest.NewPeer(t, func(pc *ipctest.PeerConn) {
		f, err := pc.ReadFrame()
		if err != nil {
			return
		}
		requests <- f
		if err := pc.WriteFrame(uint32(protocol.Subscribe), `{"success":true}`); err != nil {
			return
		}
		script(pc)
	})
	return peer, requests
}

func TestSubscribeRejectedReadsNoEvent(t *testing.T) {
	peer := ipctest.NewPeer(t, func(pc *ipctest.PeerConn) {
		f := pc.MustReadFrame()
		_ = pc.WriteFrame(f.Type, `{"success": false}`)
		// A follow-up exchange must see its own reply, not an event.
		f = pc.MustReadFrame()
		_ = pc.WriteFrame(f.Type, versionReply)
	})
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.ErrorIs(t, err, ErrSubscribeRejected)
	require.Nil(t, sub)
	require.Equal(t, fsm.StateIdle, c.State())

	resp, err := Exchange[protocol.Version](context.Background(), c, protocol.GetVersion, "")
	require.NoError(t, err)
	require.Equal(t, 4, resp.Payload.Major)
}

func TestSubscribeRejectedCarriesReason(t *testing.T) {
	peer := ipctest.NewPeer(t, func(pc *ipctest.PeerConn) {
		f := pc.MustReadFrame()
		_ = pc.WriteFrame(f.Type, `{"success":false,"error":"unknown event"}`)
	})
	c := connect(t, peer)

	_, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventTick})
	require.ErrorIs(t, err, ErrSubscribeRejected)
	require.Contains(t, err.Error(), "unknown event")
}

func TestSubscribeYieldsEventsThenUnexpectedEOF(t *testing.T) {
	peer, requests := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteFrame(protocol.EventWindow.Code(), `{"change":"new"}`)
		_ = pc.WriteFrame(protocol.EventWindow.Code(), `{"change":"focus"}`)
	})
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.NoError(t, err)
	require.Equal(t, fsm.StateSubscribed, c.State())

	req := <-requests
	require.Equal(t, uint32(protocol.Subscribe), req.Type)
	require.JSONEq(t, `["window"]`, string(req.Payload))

	var changes []string
	var final error
	for evt, err := range sub.Events(context.Background()) {
		if err != nil {
			final = err
			break
		}
		require.Equal(t, protocol.EventWindow, evt.EvtType)
		changes = append(changes, evt.Payload.Change)
	}

	require.Equal(t, []string{"new", "focus"}, changes)
	require.ErrorIs(t, final, wire.ErrUnexpectedEOF)
	require.ErrorIs(t, sub.Err(), wire.ErrUnexpectedEOF)

	_, err = sub.Next(context.Background())
	require.ErrorIs(t, err, wire.ErrUnexpectedEOF)
}

func TestSubscribeNextReadsChunkedEvents(t *testing.T) {
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteChunked(protocol.EventWorkspace.Code(), `{"change":"focus"}`, 4)
		time.Sleep(20 * time.Millisecond)
	})
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWorkspace})
	require.NoError(t, err)

	evt, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, protocol.EventWorkspace, evt.EvtType)
	require.Equal(t, "focus", evt.Payload.Change)
}

func TestSubscribeDeliversUnsubscribedEventsByDefault(t *testing.T) {
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteFrame(protocol.EventMode.Code(), `{"change":"resize"}`)
	})
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.NoError(t, err)

	evt, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, protocol.EventMode, evt.EvtType)
}

func TestSubscribeStrictRejectsUnsubscribedEvent(t *testing.T) {
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteFrame(protocol.EventMode.Code(), `{"change":"resize"}`)
	})
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow}, WithStrictEvents())
	require.NoError(t, err)

	_, err = sub.Next(context.Background())
	var unexpected *UnexpectedEventTypeError
	require.ErrorAs(t, err, &unexpected)
	require.Equal(t, protocol.EventMode.Code(), unexpected.Code)
	require.Contains(t, err.Error(), "mode")
	require.Equal(t, fsm.StateBroken, c.State())
}

func TestSubscribeReplyFrameEndsSubscription(t *testing.T) {
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteFrame(uint32(protocol.GetVersion), versionReply)
	})
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.NoError(t, err)

	_, err = sub.Next(context.Background())
	var unexpected *UnexpectedEventTypeError
	require.ErrorAs(t, err, &unexpected)
	require.Contains(t, err.Error(), "reply frame")
}

func TestSubscribeDecodeErrorTerminates(t *testing.T) {
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteFrame(protocol.EventWindow.Code(), `{"change":`)
		_ = pc.WriteFrame(protocol.EventWindow.Code(), `{"change":"new"}`)
	})
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.NoError(t, err)

	_, err = sub.Next(context.Background())
	var decodeErr *DeserializeError
	require.ErrorAs(t, err, &decodeErr)
	require.Equal(t, protocol.EventWindow.Code(), decodeErr.Type)

	_, err = sub.Next(context.Background())
	require.ErrorAs(t, err, &decodeErr)
}

func TestSubscribedClientRefusesExchanges(t *testing.T) {
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_, _ = pc.ReadFrame()
	})
	c := connect(t, peer)

	_, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.NoError(t, err)

	_, err = Exchange[protocol.Version](context.Background(), c, protocol.GetVersion, "")
	require.ErrorIs(t, err, ErrSubscribed)

	_, err = Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.ErrorIs(t, err, ErrSubscribed)
}

func TestSubscribeRequiresEvents(t *testing.T) {
	var accepted atomic.Int32
	peer := ipctest.NewPeer(t, func(pc *ipctest.PeerConn) {
		if _, err := pc.ReadFrame(); err == nil {
			accepted.Add(1)
		}
	})
	c := connect(t, peer)

	_, err := Subscribe[protocol.ChangeEvent](context.Background(), c, nil)
	require.ErrorIs(t, err, ErrNoEvents)

	_, err = Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventType(42)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown(42)")
	require.Equal(t, fsm.StateIdle, c.State())

	require.NoError(t, c.Close())
	require.Zero(t, accepted.Load())
}

func TestSubscriptionCloseUnblocksNext(t *testing.T) {
	release := make(chan struct{})
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		<-release
	})
	defer close(release)
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sub.Close())

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}
	require.Equal(t, fsm.StateClosed, c.State())
}

func TestSubscriptionEventsStopsOnBreak(t *testing.T) {
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteFrame(protocol.EventTick.Code(), `{"first":true,"payload":""}`)
		_ = pc.WriteFrame(protocol.EventTick.Code(), `{"first":false,"payload":"x"}`)
	})
	c := connect(t, peer)

	sub, err := Subscribe[map[string]any](context.Background(), c, []protocol.EventType{protocol.EventTick})
	require.NoError(t, err)

	count := 0
	for evt, err := range sub.Events(context.Background()) {
		require.NoError(t, err)
		require.Equal(t, true, evt.Payload["first"])
		count++
		break
	}
	require.Equal(t, 1, count)
	require.Equal(t, fsm.StateClosed, c.State())
}

func TestSubscriptionObservesEvents(t *testing.T) {
	obs := &recordingObserver{}
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		_ = pc.WriteFrame(protocol.EventBinding.Code(), `{"change":"run"}`)
	})
	c := connect(t, peer, WithObserver(obs))

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventBinding})
	require.NoError(t, err)
	_, err = sub.Next(context.Background())
	require.NoError(t, err)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, []protocol.EventType{protocol.EventBinding}, obs.events)
}

func TestSubscriptionErrDoesNotWaitForBlockedNext(t *testing.T) {
	release := make(chan struct{})
	peer, _ := subscribePeer(t, func(pc *ipctest.PeerConn) {
		<-release
	})
	defer close(release)
	c := connect(t, peer)

	sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)

	errc := make(chan error, 1)
	go func() { errc <- sub.Err() }()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Err blocked while Next was waiting for an event")
	}

	require.NoError(t, sub.Close())
	require.ErrorIs(t, <-done, ErrClosed)
	require.ErrorIs(t, sub.Err(), ErrClosed)
}

func TestSubscribeAcknowledgementMustBeSubscribeReply(t *testing.T) {
	tests := []struct {
		name string
		code uint32
		want string
	}{
		{name: "event frame", code: protocol.EventWindow.Code(), want: "event window"},
		{name: "other reply", code: protocol.GetVersion.Code(), want: "reply get_version"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			peer := ipctest.NewPeer(t, func(pc *ipctest.PeerConn) {
				_ = pc.MustReadFrame()
				_ = pc.WriteFrame(tc.code, `{"success":false}`)
			})
			c := connect(t, peer)

			sub, err := Subscribe[protocol.ChangeEvent](context.Background(), c, []protocol.EventType{protocol.EventWindow})
			require.Nil(t, sub)
			require.NotErrorIs(t, err, ErrSubscribeRejected)

			var unexpected *UnexpectedEventTypeError
			require.ErrorAs(t, err, &unexpected)
			require.Equal(t, tc.code, unexpected.Code)
			require.Contains(t, err.Error(), tc.want)
			require.Contains(t, err.Error(), "awaiting subscribe reply")
			require.Equal(t, fsm.StateBroken, c.State())
		})
	}
}
