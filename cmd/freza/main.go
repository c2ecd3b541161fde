package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires every subcommand.
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	invokeFlags := &InvokeFlags{}
	channelFlags := &ChannelFlags{}
	registerAgentFlags := &RegisterAgentFlags{}
	registerChannelFlags := &RegisterChannelFlags{}
	webuiFlags := &WebUIFlags{}

	frezaCommand := command{flags: globalFlags}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createInitCommand(frezaCommand),
		createInvokeCommand(frezaCommand, invokeFlags),
		createChannelCommand(frezaCommand, channelFlags),
		createStatusCommand(frezaCommand),
		createCleanupCommand(frezaCommand),
		createRegisterAgentCommand(frezaCommand, registerAgentFlags),
		createRegisterChannelCommand(frezaCommand, registerChannelFlags),
		createWebUICommand(frezaCommand, webuiFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "freza",
		Short: "Multi-agent workspace coordinator",
		Long: `Freza coordinates multiple concurrent agent instances over a shared
filesystem workspace: agents, channels, per-agent memory, an instance
registry with heartbeats, and a web UI daemon.

Examples:
  freza init
  freza invoke default "hello"
  freza channel webui "hello" --thread-id abc
  freza register-agent researcher "Research agent"
  freza webui --daemon
  freza status`,
	}
	root.PersistentFlags().StringVar(&flags.BaseDir, "base-dir", "", "workspace directory (default: XDG data home or FREZA_BASE_DIR)")
	root.PersistentFlags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")
	return root
}

func createInitCommand(frezaCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a new workspace",
		Long: `Initialize the workspace directory skeleton, register the webui
channel, and start the web UI daemon.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return frezaCommand.Init()
		},
	}
}

func createInvokeCommand(frezaCommand command, flags *InvokeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke <agent> <message>",
		Short: "Invoke an agent directly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return frezaCommand.Invoke(args[0], args[1], flags.ThreadID)
		},
	}
	cmd.Flags().StringVar(&flags.ThreadID, "thread-id", "", "thread ID for multi-turn conversations")
	return cmd
}

func createChannelCommand(frezaCommand command, flags *ChannelFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel <name> <message>",
		Short: "Deliver a channel message to its agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return frezaCommand.Channel(args[0], args[1], flags.Agent, flags.ThreadID)
		},
	}
	cmd.Flags().StringVar(&flags.ThreadID, "thread-id", "", "thread ID for multi-turn conversations")
	cmd.Flags().StringVar(&flags.Agent, "agent", "", "agent to route to (overrides channel default)")
	return cmd
}

func createStatusCommand(frezaCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show workspace status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return frezaCommand.Status()
		},
	}
}

func createCleanupCommand(frezaCommand command) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Prune stale instance state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := frezaCommand.Cleanup(); err != nil {
				return err
			}
			fmt.Println("Cleanup complete.")
			return nil
		},
	}
}

func createRegisterAgentCommand(frezaCommand command, flags *RegisterAgentFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register-agent <name> <description>",
		Short: "Register an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return frezaCommand.RegisterAgent(args[0], args[1], flags.SystemPrompt)
		},
	}
	cmd.Flags().StringVar(&flags.SystemPrompt, "system-prompt", "", "custom system prompt (use @filepath to load from file)")
	return cmd
}

func createRegisterChannelCommand(frezaCommand command, flags *RegisterChannelFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register-channel <name> <description>",
		Short: "Register a channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return frezaCommand.RegisterChannel(args[0], args[1], flags.SystemPrompt, flags.DefaultAgent)
		},
	}
	cmd.Flags().StringVar(&flags.SystemPrompt, "system-prompt", "", "custom system prompt (use @filepath to load from file)")
	cmd.Flags().StringVar(&flags.DefaultAgent, "default-agent", "", "default agent for this channel")
	return cmd
}

func createWebUICommand(frezaCommand command, flags *WebUIFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webui",
		Short: "Run or manage the web UI server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return frezaCommand.WebUI(*flags)
		},
	}
	cmd.Flags().StringVar(&flags.Host, "host", "", "bind host (default: 127.0.0.1)")
	cmd.Flags().IntVar(&flags.Port, "port", 0, "bind port (default: 7888)")
	cmd.Flags().BoolVar(&flags.Daemon, "daemon", false, "run as background daemon")
	cmd.Flags().BoolVar(&flags.Stop, "stop", false, "stop the running daemon")
	cmd.Flags().BoolVar(&flags.Status, "status", false, "check if the daemon is running")
	cmd.Flags().BoolVar(&flags.GenerateToken, "generate-token", false, "generate a new API token for remote access")
	cmd.Flags().BoolVar(&flags.Foreground, "foreground", false, "run the server in the foreground")
	_ = cmd.Flags().MarkHidden("foreground")
	return cmd
}
