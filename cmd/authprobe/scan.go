package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/nao1215/authprobe/internal/config"
	applog "github.com/nao1215/authprobe/internal/log"
	"github.com/nao1215/authprobe/internal/model"
	"github.com/nao1215/authprobe/internal/pipeline"
	"github.com/nao1215/authprobe/internal/report"
	"github.com/nao1215/authprobe/internal/transport"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <host>",
		Short: "Check whether a host's data stores require authentication",
		Long: `Scan probes one host for MongoDB and Redis and reports, per service:
- port:     whether the TCP port accepted a connection
- protocol: whether the expected protocol answered
- secured:  whether that protocol requires credentials

Open MongoDB instances receive one notice document in admin.authprobe_notice
unless --no-notice is given, in which case listDatabases is used instead.

Examples:
  # Scan a host with default ports
  authprobe scan db.example.internal

  # Only check Redis on a custom port
  authprobe scan --services redis --redis-port 6380 10.0.0.5

  # Scan through a SOCKS5 proxy and write a JSON report
  authprobe scan --proxy 127.0.0.1:9050 --json -o report.json 10.0.0.5

  # Fail a CI job when any service is open without authentication
  authprobe scan --fail-on-exposed staging-db.internal

Configuration file (.authprobe) example:
  services:
    mongodb:
      port: 27018
    redis:
      enabled: false
  notice:
    enabled: false`,
		Args: cobra.ExactArgs(1),
		RunE: runScanCmd,
	}

	addProbeFlags(cmd)

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("fail-on-exposed", false,
		"Exit with status 2 when any service accepts unauthenticated access")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildScanConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := applog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScan(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildScanConfig adds the report flags and the target host to the shared
// configuration.
func buildScanConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.FailOnExposed, err = cmd.Flags().GetBool("fail-on-exposed")
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.Host = args[0]
	}

	return cfg, nil
}

// runScan executes the scan and writes the report.
func runScan(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	// Reject bad input before any proxy or Tor connection is made.
	host, err := pipeline.NormalizeHost(cfg.Host, transport.HostValidator(cfg.Anonymous()))
	if err != nil {
		return err
	}

	s, err := newSession(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer s.Close()

	logger.Info("scan configured",
		"host", host,
		"services", serviceNames(s.coordinator.Services()),
		"anonymous", cfg.Anonymous(),
		"notice", cfg.NoticeEnabled,
	)

	scanReport, err := s.coordinator.Scan(ctx, host)
	if err != nil {
		return err
	}

	if err := outputReport(cfg, scanReport, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.FailOnExposed && len(scanReport.Exposed()) > 0 {
		return ErrServicesExposed
	}
	return nil
}

// serviceNames lists the services in scan order, with their ports.
func serviceNames(specs []pipeline.ServiceSpec) []string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, fmt.Sprintf("%s:%d", spec.Name, spec.Port))
	}
	return names
}

// outputReport outputs the scan report in the requested format. With a
// report file the terminal still gets the plain summary.
func outputReport(cfg *config.Config, scanReport *model.ScanReport, stdout io.Writer) error {
	if cfg.ReportFile == "" {
		_, err := newReportWriter(cfg, stdout).Write(scanReport)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	// Reports name exposed services, so only the owner may read them.
	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	writer := report.NewMultiWriter(
		newReportWriter(cfg, f),
		report.NewSimpleWriter(stdout, report.WithVerbose(cfg.Verbose)),
	)
	_, werr := writer.Write(scanReport)
	return errors.Join(werr, f.Close())
}

// newReportWriter returns the writer for the selected report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}
