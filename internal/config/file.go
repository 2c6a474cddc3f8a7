package config

import "time"

// ServiceConfig holds the file overrides of one service.
type ServiceConfig struct {
	// Enabled includes or excludes the service. Nil keeps the current setting.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Port overrides the well-known port.
	Port uint16 `yaml:"port,omitempty"`

	// Timeout overrides the global handshake timeout for this service.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// TimeoutsConfig holds the global timeouts.
type TimeoutsConfig struct {
	Probe     time.Duration `yaml:"probe,omitempty"`
	Handshake time.Duration `yaml:"handshake,omitempty"`
}

// NoticeConfig controls the MongoDB notice document.
type NoticeConfig struct {
	Enabled    *bool  `yaml:"enabled,omitempty"`
	Database   string `yaml:"database,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// TransportConfig selects how probes reach the target.
type TransportConfig struct {
	// Proxy is a SOCKS5 proxy address in "host:port" format.
	Proxy string `yaml:"proxy,omitempty"`

	// Tor starts the embedded Tor daemon.
	Tor bool `yaml:"tor,omitempty"`

	// TorStartupTimeout bounds the embedded Tor bootstrap.
	TorStartupTimeout time.Duration `yaml:"torStartupTimeout,omitempty"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Listen string `yaml:"listen,omitempty"`
}

// File represents the structure of the .authprobe configuration file.
// Every field is optional; zero values leave the current configuration as is.
type File struct {
	// Timeouts overrides the global probe and handshake timeouts.
	Timeouts TimeoutsConfig `yaml:"timeouts,omitempty"`

	// Services maps service names ("mongodb", "redis") to their overrides.
	Services map[string]ServiceConfig `yaml:"services,omitempty"`

	// Notice controls the MongoDB notice document.
	Notice NoticeConfig `yaml:"notice,omitempty"`

	// Transport selects the dialer used by probes.
	Transport TransportConfig `yaml:"transport,omitempty"`

	// Server holds the HTTP server settings.
	Server ServerConfig `yaml:"server,omitempty"`
}

// GetServiceConfig returns the overrides for the named service.
// An unlisted service yields the zero ServiceConfig.
func (cf *File) GetServiceConfig(name string) ServiceConfig {
	if cf == nil || cf.Services == nil {
		return ServiceConfig{}
	}
	return cf.Services[name]
}

// Validate rejects service names authprobe does not know.
func (cf *File) Validate() error {
	for name := range cf.Services {
		if name != ServiceMongoDB && name != ServiceRedis {
			return &UnknownServiceError{Name: name}
		}
	}
	return nil
}

// Apply copies the values set in the file onto cfg.
// CLI flags are applied afterwards by the caller so that they take precedence.
func (cf *File) Apply(cfg *Config) {
	if cf == nil {
		return
	}

	if cf.Timeouts.Probe != 0 {
		cfg.ProbeTimeout = cf.Timeouts.Probe
	}
	if cf.Timeouts.Handshake != 0 {
		cfg.HandshakeTimeout = cf.Timeouts.Handshake
	}

	applyService(cf.GetServiceConfig(ServiceMongoDB), &cfg.MongoDBEnabled, &cfg.MongoDBPort, &cfg.MongoDBTimeout)
	applyService(cf.GetServiceConfig(ServiceRedis), &cfg.RedisEnabled, &cfg.RedisPort, &cfg.RedisTimeout)

	if cf.Notice.Enabled != nil {
		cfg.NoticeEnabled = *cf.Notice.Enabled
	}
	if cf.Notice.Database != "" {
		cfg.NoticeDatabase = cf.Notice.Database
	}
	if cf.Notice.Collection != "" {
		cfg.NoticeCollection = cf.Notice.Collection
	}

	if cf.Transport.Proxy != "" {
		cfg.ProxyAddress = cf.Transport.Proxy
	}
	if cf.Transport.Tor {
		cfg.UseEmbeddedTor = true
	}
	if cf.Transport.TorStartupTimeout != 0 {
		cfg.TorStartupTimeout = cf.Transport.TorStartupTimeout
	}

	if cf.Server.Listen != "" {
		cfg.ListenAddress = cf.Server.Listen
	}
}

func applyService(sc ServiceConfig, enabled *bool, port *uint16, timeout *time.Duration) {
	if sc.Enabled != nil {
		*enabled = *sc.Enabled
	}
	if sc.Port != 0 {
		*port = sc.Port
	}
	if sc.Timeout != 0 {
		*timeout = sc.Timeout
	}
}
