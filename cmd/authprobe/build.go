package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/authprobe/internal/config"
	"github.com/nao1215/authprobe/internal/pipeline"
	"github.com/nao1215/authprobe/internal/probe"
	"github.com/nao1215/authprobe/internal/protocol"
	"github.com/nao1215/authprobe/internal/transport"
	"github.com/spf13/cobra"
)

// addProbeFlags registers the flags shared by every command that scans.
func addProbeFlags(cmd *cobra.Command) {
	// Service selection flags
	cmd.Flags().StringSliceP("services", "s", nil,
		"Comma-separated services to probe (mongodb, redis; default: all enabled)")
	cmd.Flags().Uint16("mongodb-port", config.DefaultMongoDBPort,
		"Port the MongoDB probe connects to")
	cmd.Flags().Uint16("redis-port", config.DefaultRedisPort,
		"Port the Redis probe connects to")

	// Timeout flags
	cmd.Flags().Duration("probe-timeout", config.DefaultProbeTimeout,
		"Hard timeout for each TCP reachability check")
	cmd.Flags().DurationP("handshake-timeout", "t", config.DefaultHandshakeTimeout,
		"Timeout for each protocol handshake")

	// MongoDB notice flag
	cmd.Flags().Bool("no-notice", false,
		"Do not write the notice document to open MongoDB instances (uses listDatabases instead)")

	// Transport flags
	cmd.Flags().StringP("proxy", "p", "",
		"Route probes through a SOCKS5 proxy (e.g., 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route probes through it")
	cmd.Flags().DurationP("tor-timeout", "T", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getConfigFlag retrieves the config file path from the command or its parent.
func getConfigFlag(cmd *cobra.Command) string {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, err = cmd.Root().PersistentFlags().GetString("config")
		if err != nil {
			return ""
		}
	}
	return path
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags the user set, in that order.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.ConfigFilePath = getConfigFlag(cmd)

	// If the user explicitly specified a config file path, error if not found.
	// If no path was specified, silently keep the defaults.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
	}

	if err := applyProbeFlags(cmd, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyProbeFlags copies explicitly set probe flags onto cfg.
// Unset flags keep the values from the configuration file.
func applyProbeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("services") {
		services, err := flags.GetStringSlice("services")
		if err != nil {
			return err
		}
		if err := cfg.SelectServices(services); err != nil {
			return err
		}
	}

	if flags.Changed("mongodb-port") {
		if cfg.MongoDBPort, err = flags.GetUint16("mongodb-port"); err != nil {
			return err
		}
	}
	if flags.Changed("redis-port") {
		if cfg.RedisPort, err = flags.GetUint16("redis-port"); err != nil {
			return err
		}
	}

	if flags.Changed("probe-timeout") {
		if cfg.ProbeTimeout, err = flags.GetDuration("probe-timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("handshake-timeout") {
		// An explicit global timeout wins over per-service file overrides.
		if cfg.HandshakeTimeout, err = flags.GetDuration("handshake-timeout"); err != nil {
			return err
		}
		cfg.MongoDBTimeout = 0
		cfg.RedisTimeout = 0
	}

	if flags.Changed("no-notice") {
		noNotice, err := flags.GetBool("no-notice")
		if err != nil {
			return err
		}
		cfg.NoticeEnabled = !noNotice
	}

	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return err
		}
		cfg.UseEmbeddedTor = false
	}
	if flags.Changed("tor") {
		if cfg.UseEmbeddedTor, err = flags.GetBool("tor"); err != nil {
			return err
		}
		if cfg.UseEmbeddedTor && !flags.Changed("proxy") {
			cfg.ProxyAddress = ""
		}
	}
	if flags.Changed("tor-timeout") {
		if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
			return err
		}
	}

	return nil
}

// session holds what one scan or serve run needs, including the embedded
// Tor daemon when one was started.
type session struct {
	coordinator *pipeline.Coordinator
	tor         *transport.EmbeddedTor
	logger      *slog.Logger
}

// newSession selects the transport and builds the scan coordinator.
// Progress messages go to status, never to the report output.
func newSession(ctx context.Context, cfg *config.Config, logger *slog.Logger, status io.Writer) (*session, error) {
	s := &session{logger: logger}

	dialer, err := s.dialer(ctx, cfg, status)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.coordinator = buildCoordinator(cfg, dialer, logger)
	return s, nil
}

// dialer returns the dialer for the configured transport.
func (s *session) dialer(ctx context.Context, cfg *config.Config, status io.Writer) (transport.Dialer, error) {
	switch {
	case cfg.ProxyAddress != "":
		if st := transport.CheckSOCKS5(ctx, cfg.ProxyAddress); st != transport.ProxyStatusOK {
			return nil, fmt.Errorf("proxy check failed: %w (make sure a SOCKS5 proxy is running at %s)",
				st.Err(), cfg.ProxyAddress)
		}
		s.logger.Info("SOCKS5 proxy verified", "address", cfg.ProxyAddress)
		return transport.NewSOCKS5Dialer(cfg.ProxyAddress)

	case cfg.UseEmbeddedTor:
		fmt.Fprintln(status, "Starting embedded Tor daemon...")
		fmt.Fprintf(status, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

		s.tor = transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
		if err := s.tor.Start(ctx); err != nil {
			s.tor = nil
			return nil, fmt.Errorf("failed to start embedded Tor: %w", err)
		}
		s.logger.Info("embedded Tor daemon started", "socksAddr", s.tor.SocksAddr())

		if st := transport.CheckSOCKS5(ctx, s.tor.SocksAddr()); st != transport.ProxyStatusOK {
			return nil, fmt.Errorf("embedded Tor proxy check failed: %w", st.Err())
		}
		fmt.Fprintf(status, "Embedded Tor daemon started (SOCKS proxy: %s)\n\n", s.tor.SocksAddr())
		return s.tor.Dialer()

	default:
		return transport.Direct(), nil
	}
}

// Close stops the embedded Tor daemon if one was started.
func (s *session) Close() {
	if s.tor == nil {
		return
	}
	s.logger.Info("stopping embedded Tor daemon")
	if err := s.tor.Stop(); err != nil {
		s.logger.Error("failed to stop embedded Tor", "error", err)
	}
	s.tor = nil
}

// buildCoordinator wires the prober, drivers and host validator for cfg.
func buildCoordinator(cfg *config.Config, dialer transport.Dialer, logger *slog.Logger) *pipeline.Coordinator {
	prober := probe.New(
		probe.WithDialer(dialer),
		probe.WithTimeout(cfg.ProbeTimeout),
		probe.WithLogger(logger),
	)

	return pipeline.NewCoordinator(
		pipeline.NewDetector(prober, logger),
		buildServiceSpecs(cfg, dialer, logger),
		pipeline.WithHostValidator(transport.HostValidator(cfg.Anonymous())),
		pipeline.WithLogger(logger),
	)
}

// buildServiceSpecs returns one spec per enabled service in report order.
func buildServiceSpecs(cfg *config.Config, dialer transport.Dialer, logger *slog.Logger) []pipeline.ServiceSpec {
	var specs []pipeline.ServiceSpec

	for _, name := range cfg.EnabledServices() {
		opts := []protocol.Option{
			protocol.WithDialer(dialer),
			protocol.WithTimeout(cfg.HandshakeTimeoutFor(name)),
			protocol.WithLogger(logger),
		}

		switch name {
		case config.ServiceMongoDB:
			opts = append(opts,
				protocol.WithNotice(cfg.NoticeEnabled),
				protocol.WithNoticeTarget(cfg.NoticeDatabase, cfg.NoticeCollection),
			)
			specs = append(specs, pipeline.NewServiceSpec(protocol.NewMongoDBDriver(opts...), cfg.MongoDBPort))
		case config.ServiceRedis:
			specs = append(specs, pipeline.NewServiceSpec(protocol.NewRedisDriver(opts...), cfg.RedisPort))
		default:
		}
	}

	return specs
}

// ErrServicesExposed is returned by scan --fail-on-exposed when at least one
// service answered without credentials.
var ErrServicesExposed = errors.New("services accept unauthenticated access")
