package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/authprobe/internal/model"
)

// Reachability checks whether a TCP port accepts connections.
// *probe.Prober implements it.
type Reachability interface {
	Reachable(ctx context.Context, host string, port uint16) bool
}

// Detector runs the per-service detection: reachability first, then the
// service's handshake driver only if the port is open.
type Detector struct {
	prober Reachability
	logger *slog.Logger
}

// NewDetector creates a Detector. A nil logger selects slog.Default().
func NewDetector(prober Reachability, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{prober: prober, logger: logger}
}

// Detect returns the outcome for one service on host.
func (d *Detector) Detect(ctx context.Context, host string, spec ServiceSpec) model.Outcome {
	if !d.prober.Reachable(ctx, host, spec.Port) {
		d.logger.Debug("skipping handshake, port closed", "service", spec.Name, "port", spec.Port)
		return model.Unreachable()
	}

	outcome := spec.Driver.Handshake(ctx, host, spec.Port)

	// A driver cannot report a closed port for a port that was just open.
	if outcome.Kind == model.OutcomeUnreachable {
		return model.ProtocolMismatch()
	}
	return outcome
}

// Run returns the status for one service on host.
func (d *Detector) Run(ctx context.Context, host string, spec ServiceSpec) model.ServiceStatus {
	return d.Detect(ctx, host, spec).Status()
}
