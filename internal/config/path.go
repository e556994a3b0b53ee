package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvPath names the environment variable that selects a config file when
// no --config flag is given.
const EnvPath = "I3IPC_CONFIG"

// ResolvePath picks the config file: the explicit flag, then $I3IPC_CONFIG,
// then $XDG_CONFIG_HOME/i3ipc/config.yaml, then ~/.config/i3ipc/config.yaml.
func ResolvePath(explicit string) (string, error) {
	path, _, err := resolvePath(explicit)
	return path, err
}

// resolvePath also reports whether the caller named the file, in which case
// it has to exist.
func resolvePath(explicit string) (string, bool, error) {
	for _, named := range []string{explicit, os.Getenv(EnvPath)} {
		if named = strings.TrimSpace(named); named != "" {
			path, err := expandHome(named)
			return path, true, err
		}
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "i3ipc", "config.yaml"), false, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, errors.New("resolve config path: no XDG_CONFIG_HOME and no home directory")
	}
	return filepath.Join(home, ".config", "i3ipc", "config.yaml"), false, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("resolve config path: cannot expand ~ without a home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
