package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded is a parsed config together with where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	// Exists is false when the default location had no file.
	Exists bool
}

// Load reads and validates the config. A file missing from the default
// location yields Default() and a warning; a named file must exist.
func Load(explicitPath string) (Loaded, error) {
	path, named, err := resolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !named:
		cfg := Default()
		warnings, err := Validate(cfg)
		if err != nil {
			return Loaded{}, err
		}
		notice := Warning{Message: fmt.Sprintf("no config at %s, using defaults", path)}
		return Loaded{Path: path, Config: cfg, Warnings: append([]Warning{notice}, warnings...)}, nil
	default:
		return Loaded{}, fmt.Errorf("read config: %w", err)
	}

	cfg, warnings, err := Parse(string(content), Default())
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return Loaded{Path: path, Config: cfg, Warnings: warnings, Exists: true}, nil
}
