package config

import (
	"fmt"
	"net"

	"github.com/rbright/i3ipc/internal/protocol"
)

var logLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Socket.DialTimeout <= 0 {
		return nil, fmt.Errorf("socket.dial_timeout must be > 0")
	}
	if cfg.Socket.Command.Raw != "" && len(cfg.Socket.Command.Argv) == 0 {
		return nil, fmt.Errorf("socket.command is configured but empty")
	}
	if cfg.Socket.Path == "" && len(cfg.Socket.Command.Argv) == 0 {
		warnings = append(warnings, Warning{
			Key:     "socket.command",
			Message: "socket.path and socket.command are both empty; only $I3SOCK and $SWAYSOCK are consulted",
		})
	}

	switch {
	case cfg.RequestTimeout < 0:
		return nil, fmt.Errorf("request_timeout must be >= 0")
	case cfg.RequestTimeout == 0:
		warnings = append(warnings, Warning{
			Key:     "request_timeout",
			Message: "request_timeout is 0; requests wait for a reply indefinitely",
		})
	}
	if cfg.MaxPayloadBytes == 0 {
		return nil, fmt.Errorf("max_payload_bytes must be > 0")
	}

	if len(cfg.Subscribe.Events) == 0 {
		return nil, fmt.Errorf("subscribe.events must list at least one event type")
	}
	if _, err := protocol.ParseEventTypes(cfg.Subscribe.Events); err != nil {
		return nil, fmt.Errorf("subscribe.events: %w", err)
	}

	if _, ok := logLevels[cfg.Log.Level]; !ok {
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	if cfg.Log.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("log.max_size_mb must be > 0")
	}
	if cfg.Log.MaxBackups < 0 {
		return nil, fmt.Errorf("log.max_backups must be >= 0")
	}
	if cfg.Log.MaxAgeDays < 0 {
		return nil, fmt.Errorf("log.max_age_days must be >= 0")
	}

	if cfg.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Listen); err != nil {
			return nil, fmt.Errorf("metrics.listen must be host:port: %w", err)
		}
	}

	return warnings, nil
}

// EventTypes resolves the configured default subscription set.
func (c Config) EventTypes() ([]protocol.EventType, error) {
	return protocol.ParseEventTypes(c.Subscribe.Events)
}
