// Package config provides configuration structures and utilities for
// authprobe. It defines the probed services, timeouts, transport selection,
// the MongoDB notice write and report preferences, and loads overrides from
// a YAML configuration file.
package config
