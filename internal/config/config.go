package config

import (
	"net"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// DefaultProbeTimeout bounds the TCP reachability check of one port.
	// It is applied in addition to the operating system's connect timeout,
	// which on most systems is far longer.
	DefaultProbeTimeout = 1 * time.Second

	// DefaultHandshakeTimeout bounds each driver's connect, read and write.
	DefaultHandshakeTimeout = 1 * time.Second

	// DefaultMongoDBPort is the well-known MongoDB port.
	DefaultMongoDBPort uint16 = 27017

	// DefaultRedisPort is the well-known Redis port.
	DefaultRedisPort uint16 = 6379

	// DefaultNoticeDatabase is the database the MongoDB notice is written to.
	DefaultNoticeDatabase = "admin"

	// DefaultNoticeCollection is the collection the MongoDB notice is written to.
	DefaultNoticeCollection = "authprobe_notice"

	// DefaultListenAddress is the address the HTTP server binds to.
	// Loopback only; exposing a scanner to the network is an explicit choice.
	DefaultListenAddress = "127.0.0.1:8080"

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = 3 * time.Minute

	// AppName is the application name used for XDG directory paths.
	AppName = "authprobe"
)

// Names of the services authprobe knows how to probe.
const (
	// ServiceMongoDB selects the MongoDB document store.
	ServiceMongoDB = "mongodb"

	// ServiceRedis selects the Redis key-value store.
	ServiceRedis = "redis"
)

// KnownServices lists the probed services in report order.
var KnownServices = []string{ServiceMongoDB, ServiceRedis}

// Config holds all configuration options for authprobe.
// It is populated from defaults, the configuration file and CLI flags, in
// that order, and passed through the application rather than kept global.
type Config struct {
	// Host is the target host name or IP address.
	Host string

	// ProbeTimeout is the hard bound on one TCP reachability check.
	ProbeTimeout time.Duration

	// HandshakeTimeout is the default bound on a protocol handshake.
	HandshakeTimeout time.Duration

	// MongoDBEnabled includes MongoDB in scans.
	MongoDBEnabled bool

	// MongoDBPort is the port MongoDB is probed on.
	MongoDBPort uint16

	// MongoDBTimeout overrides HandshakeTimeout for MongoDB when positive.
	MongoDBTimeout time.Duration

	// RedisEnabled includes Redis in scans.
	RedisEnabled bool

	// RedisPort is the port Redis is probed on.
	RedisPort uint16

	// RedisTimeout overrides HandshakeTimeout for Redis when positive.
	RedisTimeout time.Duration

	// NoticeEnabled makes the MongoDB driver prove write access by inserting
	// a notice document. When false, listDatabases is used instead.
	NoticeEnabled bool

	// NoticeDatabase is the database the notice document is written to.
	NoticeDatabase string

	// NoticeCollection is the collection the notice document is written to.
	NoticeCollection string

	// ProxyAddress is a SOCKS5 proxy in "host:port" format.
	// When empty and UseEmbeddedTor is false, connections are direct.
	ProxyAddress string

	// UseEmbeddedTor starts a tornago-managed Tor daemon and routes all
	// probes through it.
	UseEmbeddedTor bool

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output to JSON.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile's search order applies.
	ConfigFilePath string

	// JSONReport enables JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport enables Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// FailOnExposed makes the scan command exit non-zero when a service
	// answers without authentication.
	FailOnExposed bool

	// ListenAddress is the address the HTTP server binds to.
	ListenAddress string
}

// NewConfig creates a new Config with default values.
// Both services are enabled and the notice write is on.
func NewConfig() *Config {
	return &Config{
		ProbeTimeout:      DefaultProbeTimeout,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		MongoDBEnabled:    true,
		MongoDBPort:       DefaultMongoDBPort,
		RedisEnabled:      true,
		RedisPort:         DefaultRedisPort,
		NoticeEnabled:     true,
		NoticeDatabase:    DefaultNoticeDatabase,
		NoticeCollection:  DefaultNoticeCollection,
		TorStartupTimeout: DefaultTorStartupTimeout,
		ListenAddress:     DefaultListenAddress,
	}
}

// XDGConfigDir returns the XDG config directory for authprobe.
// On Linux: ~/.config/authprobe
// On macOS: ~/Library/Application Support/authprobe
// On Windows: %APPDATA%\authprobe
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// SelectServices enables exactly the named services and disables the rest.
// Names are case-insensitive. An empty list leaves the selection unchanged.
func (c *Config) SelectServices(names []string) error {
	if len(names) == 0 {
		return nil
	}

	selected := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if !slices.Contains(KnownServices, name) {
			return &UnknownServiceError{Name: name}
		}
		selected[name] = true
	}

	c.MongoDBEnabled = selected[ServiceMongoDB]
	c.RedisEnabled = selected[ServiceRedis]
	return nil
}

// EnabledServices returns the names of the enabled services in report order.
func (c *Config) EnabledServices() []string {
	var names []string
	if c.MongoDBEnabled {
		names = append(names, ServiceMongoDB)
	}
	if c.RedisEnabled {
		names = append(names, ServiceRedis)
	}
	return names
}

// HandshakeTimeoutFor returns the handshake timeout of the named service.
func (c *Config) HandshakeTimeoutFor(service string) time.Duration {
	var override time.Duration
	switch service {
	case ServiceMongoDB:
		override = c.MongoDBTimeout
	case ServiceRedis:
		override = c.RedisTimeout
	default:
	}
	if override > 0 {
		return override
	}
	return c.HandshakeTimeout
}

// Anonymous reports whether probes are routed through a SOCKS5 proxy or
// the embedded Tor daemon.
func (c *Config) Anonymous() bool {
	return c.ProxyAddress != "" || c.UseEmbeddedTor
}

// Validate checks if the configuration is valid.
// It returns the first problem found. The target host is not checked here;
// the scan coordinator owns host validation so that every entry point
// (CLI and HTTP) rejects bad hosts the same way.
func (c *Config) Validate() error {
	if c.ProbeTimeout <= 0 {
		return ErrInvalidProbeTimeout
	}

	if c.HandshakeTimeout <= 0 {
		return ErrInvalidHandshakeTimeout
	}

	if c.MongoDBTimeout < 0 || c.RedisTimeout < 0 {
		return ErrInvalidHandshakeTimeout
	}

	if len(c.EnabledServices()) == 0 {
		return ErrNoServices
	}

	if (c.MongoDBEnabled && c.MongoDBPort == 0) || (c.RedisEnabled && c.RedisPort == 0) {
		return ErrInvalidPort
	}

	if c.MongoDBEnabled && c.NoticeEnabled && (c.NoticeDatabase == "" || c.NoticeCollection == "") {
		return ErrInvalidNoticeTarget
	}

	if c.ProxyAddress != "" && c.UseEmbeddedTor {
		return ErrConflictingTransports
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if _, _, err := net.SplitHostPort(c.ListenAddress); err != nil {
		return ErrInvalidListenAddress
	}

	return nil
}
