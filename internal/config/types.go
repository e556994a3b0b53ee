// Package config resolves, parses, validates, and defaults i3ipc configuration.
package config

import "time"

// Config is the fully materialized runtime configuration.
type Config struct {
	Socket          SocketConfig
	RequestTimeout  time.Duration
	MaxPayloadBytes uint32
	Subscribe       SubscribeConfig
	Log             LogConfig
	Metrics         MetricsConfig
}

// SocketConfig controls how the window-manager socket is found and dialed.
type SocketConfig struct {
	Path        string
	Command     CommandConfig
	DialTimeout time.Duration
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// SubscribeConfig holds defaults for the subscribe command.
type SubscribeConfig struct {
	Events []string
	Strict bool
}

// LogConfig controls the JSONL log sink and its rotation.
type LogConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type MetricsConfig struct {
	Listen string
}

// Warning is a non-fatal parse/validation message. Line is zero when the
// warning is not tied to a key in the file.
type Warning struct {
	Key     string
	Line    int
	Message string
}
