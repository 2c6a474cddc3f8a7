package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/authprobe/internal/model"
	"golang.org/x/sync/errgroup"
)

// Coordinator scans one host for every configured service.
// Services are probed concurrently, so a scan takes about as long as the
// slowest service. The report lists services in configuration order.
type Coordinator struct {
	detector *Detector
	specs    []ServiceSpec
	validate func(host string) error
	logger   *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithHostValidator sets a check run on the trimmed host before probing.
// A non-nil error rejects the scan with ErrInvalidHost.
func WithHostValidator(validate func(host string) error) CoordinatorOption {
	return func(c *Coordinator) {
		c.validate = validate
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a Coordinator for the given services.
// The specs slice is copied.
func NewCoordinator(detector *Detector, specs []ServiceSpec, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		detector: detector,
		specs:    append([]ServiceSpec(nil), specs...),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Services returns a copy of the configured services.
func (c *Coordinator) Services() []ServiceSpec {
	return append([]ServiceSpec(nil), c.specs...)
}

// NormalizeHost trims host and applies validate, which may be nil.
// It fails with ErrEmptyHost or ErrInvalidHost and does no network I/O,
// so callers can reject bad input before opening any transport.
func NormalizeHost(host string, validate func(host string) error) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", ErrEmptyHost
	}
	if validate != nil {
		if err := validate(host); err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidHost, err)
		}
	}
	return host, nil
}

// Scan checks every configured service on host. It returns an error for bad
// input, in which case no connection is made, and ErrScanInterrupted when
// ctx ends before every service is classified. Otherwise the report has one
// entry per service; a service whose detection panics gets an all-false
// status with Error set.
func (c *Coordinator) Scan(ctx context.Context, host string) (*model.ScanReport, error) {
	host, err := NormalizeHost(host, c.validate)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScanInterrupted, err)
	}

	report := model.NewScanReport(host, len(c.specs))
	start := time.Now()

	c.logger.Info("starting scan", "host", host, "services", len(c.specs))

	// Each goroutine writes only its own slot, so no lock is needed.
	g, gctx := errgroup.WithContext(ctx)
	for i, spec := range c.specs {
		g.Go(func() error {
			report.Services[i] = c.scanService(gctx, host, spec)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	report.Elapsed = time.Since(start)

	// Services cut short by cancellation look like closed ports.
	if err := ctx.Err(); err != nil {
		c.logger.Warn("scan interrupted", "host", host, "elapsed", report.Elapsed)
		return nil, fmt.Errorf("%w: %w", ErrScanInterrupted, err)
	}

	c.logger.Info("scan complete",
		"host", host,
		"exposed", len(report.Exposed()),
		"elapsed", report.Elapsed,
	)

	return report, nil
}

// scanService runs the detection of one service, isolating panics.
func (c *Coordinator) scanService(ctx context.Context, host string, spec ServiceSpec) (result model.ServiceResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("service detection panicked", "service", spec.Name, "panic", r)
			result = model.FailedServiceResult(spec.Name, spec.Port, fmt.Sprintf("internal error: %v", r))
		}
	}()

	outcome := c.detector.Detect(ctx, host, spec)
	c.logger.Debug("service classified",
		"service", spec.Name,
		"port", spec.Port,
		"outcome", outcome.Kind,
		"reason", outcome.Reason,
	)
	return model.NewServiceResult(spec.Name, spec.Port, outcome)
}
