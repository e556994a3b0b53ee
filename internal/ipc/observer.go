package ipc

import (
	"time"

	"github.com/rbright/i3ipc/internal/protocol"
)

const (
	DirectionSent     = "sent"
	DirectionReceived = "received"
)

// Observer receives per-connection traffic and outcome notifications.
// Implementations must not block.
type Observer interface {
	ObserveExchange(msg protocol.MsgType, elapsed time.Duration, kind string)
	ObserveEvent(evt protocol.EventType, payloadBytes int)
	ObserveTraffic(direction string, n int)
}

type nopObserver struct{}

func (nopObserver) ObserveExchange(protocol.MsgType, time.Duration, string) {}
func (nopObserver) ObserveEvent(protocol.EventType, int)                    {}
func (nopObserver) ObserveTraffic(string, int)                              {}
