package model

import "time"

// ServiceResult is one entry of a ScanReport.
type ServiceResult struct {
	// Service is the configured service name (e.g., "MongoDB").
	Service string `json:"service"`

	// Port is the TCP port that was probed.
	Port uint16 `json:"-"`

	// Status is the detection result.
	Status ServiceStatus `json:"status"`

	// Outcome is the detailed classification behind Status.
	Outcome Outcome `json:"-"`

	// Error is set when the service's pipeline failed unexpectedly.
	// Status is all-false in that case.
	Error string `json:"error,omitempty"`
}

// NewServiceResult builds a result from a detection outcome.
func NewServiceResult(service string, port uint16, outcome Outcome) ServiceResult {
	return ServiceResult{
		Service: service,
		Port:    port,
		Status:  outcome.Status(),
		Outcome: outcome,
	}
}

// FailedServiceResult builds the all-false result used when a pipeline
// could not complete.
func FailedServiceResult(service string, port uint16, errMsg string) ServiceResult {
	return ServiceResult{
		Service: service,
		Port:    port,
		Outcome: Unreachable(),
		Error:   errMsg,
	}
}

// ScanReport is the ordered result set of one scan invocation.
// Services are in configuration order, independent of completion order.
type ScanReport struct {
	// Host is the scanned target as given by the caller (trimmed).
	Host string `json:"host"`

	// ScannedAt is the time the scan started.
	ScannedAt time.Time `json:"scanned_at"`

	// Elapsed is the wall time the scan took.
	Elapsed time.Duration `json:"elapsed_ns"`

	// Services has one entry per configured service.
	Services []ServiceResult `json:"services"`
}

// NewScanReport creates an empty report with one slot per service.
func NewScanReport(host string, services int) *ScanReport {
	return &ScanReport{
		Host:      host,
		ScannedAt: time.Now(),
		Services:  make([]ServiceResult, services),
	}
}

// Exposed returns the results of services that answered without credentials.
func (r *ScanReport) Exposed() []ServiceResult {
	var exposed []ServiceResult
	for _, s := range r.Services {
		if s.Status.Exposed() {
			exposed = append(exposed, s)
		}
	}
	return exposed
}

// Result returns the entry for the named service, if present.
func (r *ScanReport) Result(service string) (ServiceResult, bool) {
	for _, s := range r.Services {
		if s.Service == service {
			return s, true
		}
	}
	return ServiceResult{}, false
}
