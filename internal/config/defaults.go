package config

import (
	"time"

	"github.com/rbright/i3ipc/internal/wire"
)

const defaultSocketCommand = "i3 --get-socketpath"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Socket: SocketConfig{
			Command:     CommandConfig{Raw: defaultSocketCommand, Argv: []string{"i3", "--get-socketpath"}},
			DialTimeout: 2 * time.Second,
		},
		RequestTimeout:  5 * time.Second,
		MaxPayloadBytes: wire.DefaultMaxPayload,
		Subscribe: SubscribeConfig{
			Events: []string{"window", "workspace"},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}
