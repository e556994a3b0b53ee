// Package protocol defines the i3 IPC message and event tag sets and the
// reply payloads the client itself needs to understand.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// MsgType identifies a command and the reply it produces.
type MsgType uint32

const (
	RunCommand MsgType = iota
	GetWorkspaces
	Subscribe
	GetOutputs
	GetTree
	GetMarks
	GetBarConfig
	GetVersion
	GetBindingModes
	GetConfig
	SendTick
	Sync
	GetBindingState
)

var msgNames = [...]string{
	RunCommand:      "run_command",
	GetWorkspaces:   "get_workspaces",
	Subscribe:       "subscribe",
	GetOutputs:      "get_outputs",
	GetTree:         "get_tree",
	GetMarks:        "get_marks",
	GetBarConfig:    "get_bar_config",
	GetVersion:      "get_version",
	GetBindingModes: "get_binding_modes",
	GetConfig:       "get_config",
	SendTick:        "send_tick",
	Sync:            "sync",
	GetBindingState: "get_binding_state",
}

// Known reports whether m is one of the defined message types.
func (m MsgType) Known() bool {
	return int(m) < len(msgNames)
}

func (m MsgType) String() string {
	if m.Known() {
		return msgNames[m]
	}
	return fmt.Sprintf("unknown(%d)", uint32(m))
}

// Code returns the wire type code.
func (m MsgType) Code() uint32 {
	return uint32(m)
}

// MsgTypes lists every defined message type in code order.
func MsgTypes() []MsgType {
	out := make([]MsgType, len(msgNames))
	for i := range msgNames {
		out[i] = MsgType(i)
	}
	return out
}

// ParseMsgType accepts canonical names, hyphenated names, or the GET_TREE style.
func ParseMsgType(name string) (MsgType, error) {
	key := normalizeName(name)
	for i, candidate := range msgNames {
		if candidate == key {
			return MsgType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown message type %q", name)
}

// EventBit marks a frame's type code as an event rather than a reply.
const EventBit uint32 = 1 << 31

// EventType identifies an event kind, without the event bit.
type EventType uint32

const (
	EventWorkspace EventType = iota
	EventOutput
	EventMode
	EventWindow
	EventBarConfigUpdate
	EventBinding
	EventShutdown
	EventTick
)

var eventNames = [...]string{
	EventWorkspace:       "workspace",
	EventOutput:          "output",
	EventMode:            "mode",
	EventWindow:          "window",
	EventBarConfigUpdate: "barconfig_update",
	EventBinding:         "binding",
	EventShutdown:        "shutdown",
	EventTick:            "tick",
}

// Known reports whether e is one of the defined event types.
func (e EventType) Known() bool {
	return int(e) < len(eventNames)
}

func (e EventType) String() string {
	if e.Known() {
		return eventNames[e]
	}
	return fmt.Sprintf("unknown(%d)", uint32(e))
}

// Code returns the wire type code, event bit included.
func (e EventType) Code() uint32 {
	return EventBit | uint32(e)
}

// MarshalJSON renders the canonical name used in subscribe requests.
func (e EventType) MarshalJSON() ([]byte, error) {
	if !e.Known() {
		return nil, fmt.Errorf("cannot subscribe to %s", e)
	}
	return []byte(strconv.Quote(eventNames[e])), nil
}

// EventTypes lists every defined event type in code order.
func EventTypes() []EventType {
	out := make([]EventType, len(eventNames))
	for i := range eventNames {
		out[i] = EventType(i)
	}
	return out
}

// ParseEventType resolves a canonical event name.
func ParseEventType(name string) (EventType, error) {
	key := normalizeName(name)
	for i, candidate := range eventNames {
		if candidate == key {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", name)
}

// ParseEventTypes resolves a list of names, rejecting duplicates.
func ParseEventTypes(names []string) ([]EventType, error) {
	out := make([]EventType, 0, len(names))
	seen := make(map[EventType]struct{}, len(names))
	for _, name := range names {
		evt, err := ParseEventType(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[evt]; dup {
			return nil, fmt.Errorf("event type %q listed twice", name)
		}
		seen[evt] = struct{}{}
		out = append(out, evt)
	}
	return out, nil
}

// SplitCode separates a wire type code into its event flag and value.
func SplitCode(code uint32) (isEvent bool, value uint32) {
	return code&EventBit != 0, code &^ EventBit
}

func normalizeName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	return strings.ReplaceAll(key, "-", "_")
}
