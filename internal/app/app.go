// Package app wires configuration, logging, metrics, and the IPC client into
// the command-line entrypoint.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rbright/i3ipc/internal/cli"
	"github.com/rbright/i3ipc/internal/config"
	"github.com/rbright/i3ipc/internal/doctor"
	"github.com/rbright/i3ipc/internal/ipc"
	"github.com/rbright/i3ipc/internal/logging"
	"github.com/rbright/i3ipc/internal/metrics"
	"github.com/rbright/i3ipc/internal/protocol"
	"github.com/rbright/i3ipc/internal/version"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Registry receives the client metrics; a fresh registry is used when nil.
	Registry *prometheus.Registry
}

// eventLine is one line of subscribe output.
type eventLine struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	inv, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText())
		return exitUsage
	}

	switch inv.Command {
	case cli.CommandHelp:
		fmt.Fprint(r.Stdout, inv.Text)
		return exitOK
	case cli.CommandVersion:
		fmt.Fprintln(r.Stdout, version.String())
		return exitOK
	}

	proj, err := newProjection(inv.Query)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitUsage
	}

	cfgLoaded, err := config.Load(inv.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return exitFailure
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return exitFailure
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		if cfgLoaded.Exists {
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		}
		logger.Warn("config warning", "line", w.Line, "key", w.Key, "message", w.Message)
	}

	logger.Info("command start", append([]any{
		"command", inv.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	}, version.LogAttrs()...)...)

	registry := r.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	s := session{
		Runner:   r,
		inv:      inv,
		cfg:      cfgLoaded.Config,
		logger:   logger,
		registry: registry,
		proj:     proj,
	}
	s.opts = []ipc.Option{
		ipc.WithLogger(logger),
		ipc.WithObserver(metrics.New(registry)),
		ipc.WithMaxPayload(s.cfg.MaxPayloadBytes),
	}

	switch inv.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, inv.SocketPath, s.opts...)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return exitOK
		}
		return exitFailure
	case cli.CommandSend:
		return s.commandSend(ctx)
	case cli.CommandRun:
		return s.commandRun(ctx)
	case cli.CommandSubscribe:
		return s.commandSubscribe(ctx)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", inv.Command)
		return exitUsage
	}
}

// session carries per-invocation state shared by the socket commands.
type session struct {
	Runner
	inv      cli.Invocation
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	proj     *projection
	opts     []ipc.Option
}

func (s session) fail(err error) int {
	fmt.Fprintf(s.Stderr, "error: %v\n", err)
	s.logger.Error("command failed", "command", s.inv.Command, "kind", ipc.ErrorKind(err), "error", err.Error())
	return exitFailure
}

func (s session) connect(ctx context.Context) (*ipc.Client, error) {
	discovery := ipc.Discovery{Path: s.cfg.Socket.Path, Command: s.cfg.Socket.Command.Argv}
	if s.inv.SocketPath != "" {
		discovery.Path = s.inv.SocketPath
	}
	path, err := ipc.ResolveSocketPath(ctx, discovery)
	if err != nil {
		return nil, err
	}
	return ipc.Connect(ctx, path, s.cfg.Socket.DialTimeout, s.opts...)
}

// requestContext bounds one exchange by request_timeout when it is set.
func (s session) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

func (s session) commandSend(ctx context.Context) int {
	client, err := s.connect(ctx)
	if err != nil {
		return s.fail(err)
	}
	defer client.Close()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	resp, err := ipc.Exchange[json.RawMessage](reqCtx, client, s.inv.MsgType, s.inv.Payload)
	if err != nil {
		return s.fail(err)
	}
	if err := s.print(resp.Payload); err != nil {
		return s.fail(err)
	}
	return exitOK
}

func (s session) commandRun(ctx context.Context) int {
	client, err := s.connect(ctx)
	if err != nil {
		return s.fail(err)
	}
	defer client.Close()

	reqCtx, cancel := s.requestContext(ctx)
	defer cancel()

	resp, err := ipc.Exchange[[]protocol.CommandOutcome](reqCtx, client, protocol.RunCommand, s.inv.Payload)
	if err != nil {
		return s.fail(err)
	}

	var failed []string
	for i, outcome := range resp.Payload {
		if outcome.Success {
			fmt.Fprintf(s.Stdout, "[OK] command %d\n", i+1)
			continue
		}
		reason := strings.TrimSpace(outcome.Error)
		if reason == "" {
			reason = "failed"
		}
		fmt.Fprintf(s.Stdout, "[FAIL] command %d: %s\n", i+1, reason)
		failed = append(failed, reason)
	}
	if len(failed) > 0 {
		s.logger.Warn("run_command rejected", "payload", s.inv.Payload, "errors", failed)
		return exitFailure
	}
	return exitOK
}

func (s session) commandSubscribe(ctx context.Context) int {
	events := s.inv.Events
	if len(events) == 0 {
		defaults, err := s.cfg.EventTypes()
		if err != nil {
			return s.fail(err)
		}
		events = defaults
	}
	var subOpts []ipc.SubscribeOption
	if s.inv.Strict || s.cfg.Subscribe.Strict {
		subOpts = append(subOpts, ipc.WithStrictEvents())
	}

	if s.cfg.Metrics.Listen != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, s.cfg.Metrics.Listen, s.registry, s.logger); err != nil {
				s.logger.Error("metrics server failed", "error", err.Error())
			}
		}()
	}

	client, err := s.connect(ctx)
	if err != nil {
		return s.fail(err)
	}
	defer client.Close()

	reqCtx, cancel := s.requestContext(ctx)
	sub, err := ipc.Subscribe[json.RawMessage](reqCtx, client, events, subOpts...)
	cancel()
	if err != nil {
		return s.fail(err)
	}

	seen := 0
	for evt, err := range sub.Events(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return exitOK
			}
			return s.fail(err)
		}
		if err := s.printEvent(evt); err != nil {
			return s.fail(err)
		}
		seen++
		if s.inv.Count > 0 && seen >= s.inv.Count {
			break
		}
	}
	return exitOK
}

func (s session) print(raw []byte) error {
	docs, err := s.proj.Apply(raw)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		fmt.Fprintln(s.Stdout, doc)
	}
	return nil
}

func (s session) printEvent(evt ipc.EventResponse[json.RawMessage]) error {
	if s.inv.Query != "" {
		return s.print(evt.Payload)
	}
	line, err := sonic.ConfigStd.MarshalToString(eventLine{Event: evt.EvtType.String(), Payload: evt.Payload})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	fmt.Fprintln(s.Stdout, line)
	return nil
}
