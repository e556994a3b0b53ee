// Package cli turns process arguments into a typed invocation.
package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rbright/i3ipc/internal/protocol"
	"github.com/rbright/i3ipc/internal/version"
)

type Command string

const (
	CommandSend      Command = "send"
	CommandRun       Command = "run"
	CommandSubscribe Command = "subscribe"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// Invocation is one parsed command line.
type Invocation struct {
	Command    Command
	ConfigPath string
	SocketPath string

	// send and run
	MsgType protocol.MsgType
	Payload string

	// subscribe
	Events []protocol.EventType
	Count  int
	Strict bool

	Query string

	// Text holds help or version output when Command is CommandHelp.
	Text string
}

// Parse validates args against the command tree. Every error it returns is a
// usage error.
func Parse(args []string) (Invocation, error) {
	var inv Invocation
	var out bytes.Buffer

	root := newRoot(&inv)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)

	if err := root.Execute(); err != nil {
		return Invocation{}, err
	}
	if inv.Command == "" {
		inv.Command = CommandHelp
		inv.Text = out.String()
	}
	return inv, nil
}

// HelpText renders the root usage.
func HelpText() string {
	var inv Invocation
	return newRoot(&inv).UsageString()
}

func newRoot(inv *Invocation) *cobra.Command {
	root := &cobra.Command{
		Use:           "i3ipc",
		Short:         "Talk to i3 or sway over the IPC socket",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&inv.ConfigPath, "config", "", "config file path (default $I3IPC_CONFIG, then $XDG_CONFIG_HOME/i3ipc/config.yaml)")
	root.PersistentFlags().StringVar(&inv.SocketPath, "socket", "", "socket path, overrides discovery")

	root.AddCommand(
		sendCmd(inv),
		runCmd(inv),
		subscribeCmd(inv),
		&cobra.Command{
			Use:   "doctor",
			Short: "Check configuration and socket connectivity",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				inv.Command = CommandDoctor
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				inv.Command = CommandVersion
				return nil
			},
		},
	)
	return root
}

func sendCmd(inv *Invocation) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send <type> [payload]",
		Short: "Send one message and print the raw reply",
		Long: "Send one message and print the raw reply.\n\nTypes: " +
			strings.Join(msgTypeNames(), ", "),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			msg, err := protocol.ParseMsgType(args[0])
			if err != nil {
				return err
			}
			if msg == protocol.Subscribe {
				return fmt.Errorf("use the subscribe command to receive events")
			}
			inv.Command = CommandSend
			inv.MsgType = msg
			if len(args) == 2 {
				inv.Payload = args[1]
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inv.Query, "query", "", "JSONPath applied to the reply")
	return cmd
}

func runCmd(inv *Invocation) *cobra.Command {
	return &cobra.Command{
		Use:   "run <command...>",
		Short: "Run window-manager commands",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			inv.Command = CommandRun
			inv.MsgType = protocol.RunCommand
			inv.Payload = strings.Join(args, " ")
			return nil
		},
	}
}

func subscribeCmd(inv *Invocation) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribe [events...]",
		Short: "Print events as JSON lines",
		Long: "Print events as JSON lines. Without arguments the configured default set is used.\n\nEvents: " +
			strings.Join(eventTypeNames(), ", "),
		RunE: func(_ *cobra.Command, args []string) error {
			if inv.Count < 0 {
				return fmt.Errorf("--count must be >= 0")
			}
			events, err := protocol.ParseEventTypes(args)
			if err != nil {
				return err
			}
			inv.Command = CommandSubscribe
			inv.Events = events
			return nil
		},
	}
	cmd.Flags().IntVar(&inv.Count, "count", 0, "stop after N events (0 means unbounded)")
	cmd.Flags().BoolVar(&inv.Strict, "strict", false, "fail on events outside the subscribed set")
	cmd.Flags().StringVar(&inv.Query, "query", "", "JSONPath applied to each event payload")
	return cmd
}

func msgTypeNames() []string {
	types := protocol.MsgTypes()
	names := make([]string, 0, len(types))
	for _, msg := range types {
		names = append(names, msg.String())
	}
	return names
}

func eventTypeNames() []string {
	types := protocol.EventTypes()
	names := make([]string, 0, len(types))
	for _, evt := range types {
		names = append(names, evt.String())
	}
	return names
}
