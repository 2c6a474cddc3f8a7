package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
// These errors are returned by Config.Validate() so that callers can use
// errors.Is() while still printing a human-readable message.
var (
	// ErrInvalidProbeTimeout is returned when the probe timeout is not positive.
	ErrInvalidProbeTimeout = errors.New("invalid probe timeout: must be positive")

	// ErrInvalidHandshakeTimeout is returned when a handshake timeout is not
	// positive, or a per-service override is negative.
	ErrInvalidHandshakeTimeout = errors.New("invalid handshake timeout: must be positive")

	// ErrNoServices is returned when every service has been disabled.
	ErrNoServices = errors.New("no services selected: enable at least one of mongodb, redis")

	// ErrUnknownService is matched by UnknownServiceError.
	ErrUnknownService = errors.New("unknown service")

	// ErrInvalidPort is returned when an enabled service has port 0.
	ErrInvalidPort = errors.New("invalid port: must be between 1 and 65535")

	// ErrInvalidNoticeTarget is returned when the notice write is enabled
	// without a database or collection.
	ErrInvalidNoticeTarget = errors.New("invalid notice target: database and collection are required")

	// ErrConflictingTransports is returned when both --proxy and --tor are set.
	ErrConflictingTransports = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidListenAddress is returned when the listen address is not "host:port".
	ErrInvalidListenAddress = errors.New("invalid listen address: must be host:port")
)

// UnknownServiceError reports a service name that authprobe cannot probe.
type UnknownServiceError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("%s %q: known services are mongodb, redis", ErrUnknownService, e.Name)
}

// Is makes errors.Is(err, ErrUnknownService) match.
func (e *UnknownServiceError) Is(target error) bool {
	return target == ErrUnknownService
}
