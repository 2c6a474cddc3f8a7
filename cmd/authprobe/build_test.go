package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nao1215/authprobe/internal/config"
	"github.com/nao1215/authprobe/internal/pipeline"
	"github.com/nao1215/authprobe/internal/protocol/protocoltest"
	"github.com/nao1215/authprobe/internal/transport"
	"github.com/spf13/cobra"
)

// parseSubcommand returns the named subcommand of a fresh root command with
// args parsed, so that persistent flags resolve as they do at runtime.
func parseSubcommand(t *testing.T, name string, args ...string) *cobra.Command {
	t.Helper()

	root := NewRootCmd()
	cmd, _, err := root.Find([]string{name})
	if err != nil {
		t.Fatalf("failed to find %s: %v", name, err)
	}
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return cmd
}

// writeConfigFile writes a configuration file into a temp directory.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".authprobe")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}
	return path
}

// discardLogger returns a logger that drops everything.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestGetVerboseFlag tests reading the persistent verbose flag.
func TestGetVerboseFlag(t *testing.T) {
	t.Parallel()

	t.Run("set on root", func(t *testing.T) {
		t.Parallel()
		cmd := parseSubcommand(t, "scan", "-v")
		if !getVerboseFlag(cmd) {
			t.Error("expected verbose to be true")
		}
	})

	t.Run("missing flag defaults to false", func(t *testing.T) {
		t.Parallel()
		if getVerboseFlag(&cobra.Command{}) {
			t.Error("expected verbose to be false")
		}
	})
}

// TestBuildConfig tests layering defaults, the file and flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults without a config file", func(t *testing.T) {
		t.Parallel()

		cfg, err := buildConfig(parseSubcommand(t, "scan", "--config", writeConfigFile(t, "")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MongoDBPort != config.DefaultMongoDBPort || cfg.RedisPort != config.DefaultRedisPort {
			t.Errorf("expected default ports, got %d and %d", cfg.MongoDBPort, cfg.RedisPort)
		}
		if !cfg.NoticeEnabled {
			t.Error("expected notice to be enabled by default")
		}
		if cfg.Anonymous() {
			t.Error("expected direct transport by default")
		}
	})

	t.Run("file values apply", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `timeouts:
  probe: 250ms
services:
  mongodb:
    port: 27018
    timeout: 3s
  redis:
    enabled: false
notice:
  enabled: false
`)
		cfg, err := buildConfig(parseSubcommand(t, "scan", "--config", path))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ProbeTimeout != 250*time.Millisecond {
			t.Errorf("expected probe timeout 250ms, got %s", cfg.ProbeTimeout)
		}
		if cfg.MongoDBPort != 27018 {
			t.Errorf("expected MongoDB port 27018, got %d", cfg.MongoDBPort)
		}
		if cfg.HandshakeTimeoutFor(config.ServiceMongoDB) != 3*time.Second {
			t.Errorf("expected MongoDB timeout 3s, got %s", cfg.HandshakeTimeoutFor(config.ServiceMongoDB))
		}
		if cfg.RedisEnabled || cfg.NoticeEnabled {
			t.Error("expected Redis and notice to be disabled")
		}
	})

	t.Run("flags override the file", func(t *testing.T) {
		t.Parallel()

		path := writeConfigFile(t, `services:
  mongodb:
    port: 27018
    timeout: 3s
transport:
  tor: true
`)
		cmd := parseSubcommand(t, "scan",
			"--config", path,
			"--mongodb-port", "27019",
			"--handshake-timeout", "2s",
			"--proxy", "127.0.0.1:9050",
			"--no-notice",
			"--services", "mongodb",
		)
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MongoDBPort != 27019 {
			t.Errorf("expected MongoDB port 27019, got %d", cfg.MongoDBPort)
		}
		if got := cfg.HandshakeTimeoutFor(config.ServiceMongoDB); got != 2*time.Second {
			t.Errorf("expected handshake timeout 2s, got %s", got)
		}
		if cfg.ProxyAddress != "127.0.0.1:9050" || cfg.UseEmbeddedTor {
			t.Errorf("expected the proxy flag to replace tor, got proxy=%q tor=%v", cfg.ProxyAddress, cfg.UseEmbeddedTor)
		}
		if cfg.NoticeEnabled {
			t.Error("expected --no-notice to disable the notice")
		}
		if cfg.RedisEnabled {
			t.Error("expected --services mongodb to disable Redis")
		}
	})

	t.Run("unknown service", func(t *testing.T) {
		t.Parallel()

		cmd := parseSubcommand(t, "scan", "--config", writeConfigFile(t, ""), "--services", "mysql")
		_, err := buildConfig(cmd)
		if !errors.Is(err, config.ErrUnknownService) {
			t.Errorf("expected ErrUnknownService, got %v", err)
		}
	})

	t.Run("explicit config file not found", func(t *testing.T) {
		t.Parallel()

		cmd := parseSubcommand(t, "scan", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := buildConfig(cmd)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("invalid config file", func(t *testing.T) {
		t.Parallel()

		cmd := parseSubcommand(t, "scan", "--config", writeConfigFile(t, "invalid: yaml: content: ["))
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for invalid config file")
		}
	})
}

// TestBuildServiceSpecs tests driver construction from the configuration.
func TestBuildServiceSpecs(t *testing.T) {
	t.Parallel()

	t.Run("all services in report order", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.RedisPort = 6380

		specs := buildServiceSpecs(cfg, transport.Direct(), discardLogger())
		if len(specs) != 2 {
			t.Fatalf("expected 2 specs, got %d", len(specs))
		}
		if specs[0].Name != "MongoDB" || specs[0].Port != config.DefaultMongoDBPort {
			t.Errorf("unexpected first spec %+v", specs[0])
		}
		if specs[1].Name != "Redis" || specs[1].Port != 6380 {
			t.Errorf("unexpected second spec %+v", specs[1])
		}
	})

	t.Run("disabled service is skipped", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.MongoDBEnabled = false

		specs := buildServiceSpecs(cfg, transport.Direct(), discardLogger())
		if len(specs) != 1 || specs[0].Name != "Redis" {
			t.Errorf("expected only Redis, got %+v", specs)
		}
	})
}

// TestBuildCoordinator tests that the coordinator validates hosts for the
// selected transport.
func TestBuildCoordinator(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	c := buildCoordinator(cfg, transport.Direct(), discardLogger())

	if len(c.Services()) != 2 {
		t.Errorf("expected 2 services, got %d", len(c.Services()))
	}

	onion := "p53lf57qovyuvwsc6xnrppyply3vtqm7l6pcobkmyqsiofyeznfu5uqd.onion"
	_, err := c.Scan(context.Background(), onion)
	if !pipeline.IsInputError(err) || !errors.Is(err, transport.ErrOnionNeedsProxy) {
		t.Errorf("expected onion host to need a proxy, got %v", err)
	}
}

// TestNewSessionProxyCheck tests that an unusable proxy fails before scanning.
func TestNewSessionProxyCheck(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.ProxyAddress = "127.0.0.1:" + strconv.Itoa(int(protocoltest.ClosedPort(t)))

	_, err := newSession(context.Background(), cfg, discardLogger(), io.Discard)
	if !errors.Is(err, transport.ErrProxyCannotConnect) {
		t.Errorf("expected ErrProxyCannotConnect, got %v", err)
	}
}
