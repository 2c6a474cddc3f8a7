package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/authprobe/internal/config"
	applog "github.com/nao1215/authprobe/internal/log"
	"github.com/nao1215/authprobe/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scans over HTTP",
		Long: `Serve starts an HTTP server that runs one scan per request.

Routes:
  GET  /scan?host=<host>
  POST /scan   {"host": "<host>"}
  GET  /healthz

A scan answers with the ordered service array:
  [{"service":"MongoDB","status":{"port":true,"protocol":true,"secured":true}}, ...]

The server binds to loopback by default. Exposing it lets anyone who can
reach it make this machine probe arbitrary hosts.

Examples:
  # Serve on the default address
  authprobe serve

  # Serve on all interfaces with JSON logs
  authprobe serve --listen :8080 --log-json`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	addProbeFlags(cmd)

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress,
		"Address the HTTP server listens on")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("listen") {
		if cfg.ListenAddress, err = cmd.Flags().GetString("listen"); err != nil {
			return err
		}
	}
	if cfg.LogJSON, err = cmd.Flags().GetBool("log-json"); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newServeLogger(cfg, cmd)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cfg, logger, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintf(cmd.ErrOrStderr(), "Listening on http://%s\n", cfg.ListenAddress)

	srv := server.New(s.coordinator, server.WithLogger(logger))
	return srv.ListenAndServe(ctx, cfg.ListenAddress)
}

// newServeLogger creates the server logger in the selected format.
func newServeLogger(cfg *config.Config, cmd *cobra.Command) *slog.Logger {
	if cfg.LogJSON {
		return applog.NewSecureJSONLogger(cmd.ErrOrStderr(), cfg.Verbose)
	}
	return applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
}
