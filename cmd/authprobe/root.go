package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for authprobe.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authprobe",
		Short: "Check whether MongoDB and Redis enforce authentication",
		Long: `authprobe probes one host for well-known data stores and reports, per service,
whether the TCP port is open, whether the expected protocol answers and whether
that protocol requires credentials.

The check runs in three stages: a TCP reachability probe, a protocol
handshake with the real client driver, and an authentication inference from
the first command's reply. No credentials are ever sent.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .authprobe in current directory, XDG config or home directory)")

	// Add subcommands
	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		if !errors.Is(err, ErrServicesExposed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, ErrServicesExposed) {
		return 2
	}
	return 1
}
