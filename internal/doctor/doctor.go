// Package doctor runs readiness diagnostics for config, socket discovery, and
// the window-manager connection.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rbright/i3ipc/internal/config"
	"github.com/rbright/i3ipc/internal/ipc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes config and connectivity checks. socketOverride takes the place
// of socket.path when non-empty. Checks after a failed socket lookup are skipped.
func Run(ctx context.Context, loaded config.Loaded, socketOverride string, opts ...ipc.Option) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded)}

	discovery := ipc.Discovery{Path: cfg.Socket.Path, Command: cfg.Socket.Command.Argv}
	if socketOverride != "" {
		discovery.Path = socketOverride
	}
	if discovery.Path == "" && os.Getenv("I3SOCK") == "" && os.Getenv("SWAYSOCK") == "" {
		checks = append(checks, checkCommand(discovery.Command, "socket.command"))
	}

	path, err := ipc.ResolveSocketPath(ctx, discovery)
	if err != nil {
		checks = append(checks, Check{Name: "socket.path", Pass: false, Message: err.Error()})
		return Report{Checks: checks}
	}
	checks = append(checks, Check{Name: "socket.path", Pass: true, Message: path})

	exists := checkSocketFile(path)
	checks = append(checks, exists)
	if !exists.Pass {
		return Report{Checks: checks}
	}

	checks = append(checks, checkVersion(ctx, path, cfg, opts))
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if !loaded.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", loaded.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty and neither $I3SOCK nor $SWAYSOCK is set"}
	}
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", argv[0])}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("found at %s", path)}
}

func checkSocketFile(path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{Name: "socket.exists", Pass: false, Message: err.Error()}
	}
	if info.Mode()&os.ModeSocket == 0 {
		return Check{Name: "socket.exists", Pass: false, Message: fmt.Sprintf("%s is not a unix socket (mode %s)", path, info.Mode())}
	}
	return Check{Name: "socket.exists", Pass: true, Message: "unix socket present"}
}

func checkVersion(ctx context.Context, path string, cfg config.Config, opts []ipc.Option) Check {
	opts = append([]ipc.Option{ipc.WithMaxPayload(cfg.MaxPayloadBytes)}, opts...)
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = cfg.Socket.DialTimeout
	}

	v, err := ipc.Probe(ctx, path, timeout, opts...)
	if err != nil {
		return Check{Name: "ipc.version", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.HumanReadable)
	if v.LoadedConfigFileName != "" {
		message += ", config " + v.LoadedConfigFileName
	}
	return Check{Name: "ipc.version", Pass: true, Message: message}
}
