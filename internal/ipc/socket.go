package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/rbright/i3ipc/internal/protocol"
)

// ErrNoSocket reports that no discovery source produced a socket path.
var ErrNoSocket = errors.New("ipc: no window-manager socket found")

// DefaultSocketCommand asks a running i3 for its socket path.
var DefaultSocketCommand = []string{"i3", "--get-socketpath"}

// Discovery lists the sources consulted, in order, for the socket path.
type Discovery struct {
	// Path wins over every other source when set.
	Path string
	// Command prints the socket path on stdout.
	Command []string
}

// ResolveSocketPath finds the socket path: the explicit override, then
// $I3SOCK, then $SWAYSOCK, then the discovery command's trimmed stdout.
func ResolveSocketPath(ctx context.Context, d Discovery) (string, error) {
	if path := strings.TrimSpace(d.Path); path != "" {
		return path, nil
	}
	for _, key := range []string{"I3SOCK", "SWAYSOCK"} {
		if path := strings.TrimSpace(os.Getenv(key)); path != "" {
			return path, nil
		}
	}
	if len(d.Command) == 0 {
		return "", ErrNoSocket
	}
	return runDiscovery(ctx, d.Command)
}

func runDiscovery(ctx context.Context, argv []string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return "", fmt.Errorf("discover socket via %v: %w", argv, err)
		}
		return "", fmt.Errorf("discover socket via %v: %w (%s)", argv, err, detail)
	}

	path := strings.TrimSpace(string(out))
	if path == "" {
		return "", fmt.Errorf("discover socket via %v: %w", argv, ErrNoSocket)
	}
	return path, nil
}

// Probe connects to path and asks the peer for its version.
func Probe(ctx context.Context, path string, timeout time.Duration, opts ...Option) (protocol.Version, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := Connect(ctx, path, timeout, opts...)
	if err != nil {
		switch {
		case isSocketMissing(err):
			return protocol.Version{}, fmt.Errorf("socket %s does not exist: %w", path, err)
		case isConnectionRefused(err):
			return protocol.Version{}, fmt.Errorf("nothing is listening on %s: %w", path, err)
		}
		return protocol.Version{}, fmt.Errorf("probe socket: %w", err)
	}
	defer c.Close()

	resp, err := Exchange[protocol.Version](ctx, c, protocol.GetVersion, "")
	if err != nil {
		return protocol.Version{}, fmt.Errorf("probe socket: %w", err)
	}
	return resp.Payload, nil
}

// isSocketMissing reports absent-socket failures.
func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist)
}

// isConnectionRefused reports no-listener failures.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
