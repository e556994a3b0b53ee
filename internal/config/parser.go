package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the on-disk YAML layout.
type fileConfig struct {
	Socket struct {
		Path        string        `yaml:"path"`
		Command     string        `yaml:"command"`
		DialTimeout time.Duration `yaml:"dial_timeout"`
	} `yaml:"socket"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	MaxPayloadBytes uint32        `yaml:"max_payload_bytes"`
	Subscribe       struct {
		Events []string `yaml:"events"`
		Strict bool     `yaml:"strict"`
	} `yaml:"subscribe"`
	Log struct {
		Level      string `yaml:"level"`
		Path       string `yaml:"path"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`
	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
}

func fileFromConfig(cfg Config) fileConfig {
	var f fileConfig
	f.Socket.Path = cfg.Socket.Path
	f.Socket.Command = cfg.Socket.Command.Raw
	f.Socket.DialTimeout = cfg.Socket.DialTimeout
	f.RequestTimeout = cfg.RequestTimeout
	f.MaxPayloadBytes = cfg.MaxPayloadBytes
	f.Subscribe.Events = append([]string(nil), cfg.Subscribe.Events...)
	f.Subscribe.Strict = cfg.Subscribe.Strict
	f.Log.Level = cfg.Log.Level
	f.Log.Path = cfg.Log.Path
	f.Log.MaxSizeMB = cfg.Log.MaxSizeMB
	f.Log.MaxBackups = cfg.Log.MaxBackups
	f.Log.MaxAgeDays = cfg.Log.MaxAgeDays
	f.Metrics.Listen = cfg.Metrics.Listen
	return f
}

func (f fileConfig) materialize() (Config, error) {
	command, err := commandConfig(f.Socket.Command)
	if err != nil {
		return Config{}, fmt.Errorf("socket.command: %w", err)
	}
	return Config{
		Socket: SocketConfig{
			Path:        strings.TrimSpace(f.Socket.Path),
			Command:     command,
			DialTimeout: f.Socket.DialTimeout,
		},
		RequestTimeout:  f.RequestTimeout,
		MaxPayloadBytes: f.MaxPayloadBytes,
		Subscribe: SubscribeConfig{
			Events: f.Subscribe.Events,
			Strict: f.Subscribe.Strict,
		},
		Log: LogConfig{
			Level:      strings.ToLower(strings.TrimSpace(f.Log.Level)),
			Path:       strings.TrimSpace(f.Log.Path),
			MaxSizeMB:  f.Log.MaxSizeMB,
			MaxBackups: f.Log.MaxBackups,
			MaxAgeDays: f.Log.MaxAgeDays,
		},
		Metrics: MetricsConfig{Listen: strings.TrimSpace(f.Metrics.Listen)},
	}, nil
}

// Parse overlays YAML content on base, rejecting unknown keys, and validates
// the result. Keys absent from content keep their base values.
func Parse(content string, base Config) (Config, []Warning, error) {
	file := fileFromConfig(base)

	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, nil, err
	}

	cfg, err := file.materialize()
	if err != nil {
		return Config{}, nil, err
	}
	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}

	var root yaml.Node
	if yaml.Unmarshal([]byte(content), &root) == nil {
		for i := range warnings {
			warnings[i].Line = keyLine(&root, warnings[i].Key)
		}
	}
	return cfg, warnings, nil
}

// keyLine finds the line of a dotted key such as "socket.command", or 0.
func keyLine(root *yaml.Node, key string) int {
	if key == "" {
		return 0
	}
	node := root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	line := 0
	for _, part := range strings.Split(key, ".") {
		if node.Kind != yaml.MappingNode {
			return 0
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == part {
				line = node.Content[i].Line
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return 0
		}
		node = next
	}
	return line
}
