package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nao1215/authprobe/internal/model"
	"github.com/nao1215/authprobe/internal/pipeline"
	"github.com/nao1215/authprobe/internal/report"
)

const (
	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds draining in-flight scans on shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// maxBodySize limits POST /scan bodies.
	maxBodySize = 64 << 10
)

// Scanner runs one scan. pipeline.Coordinator implements it.
type Scanner interface {
	Scan(ctx context.Context, host string) (*model.ScanReport, error)
}

// Server serves scan requests over HTTP.
type Server struct {
	scanner           Scanner
	logger            *slog.Logger
	readHeaderTimeout time.Duration
	shutdownTimeout   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShutdownTimeout sets how long Serve waits for in-flight requests
// after its context is canceled.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		if timeout > 0 {
			s.shutdownTimeout = timeout
		}
	}
}

// New creates a Server backed by the given scanner.
func New(scanner Scanner, opts ...Option) *Server {
	s := &Server{
		scanner:           scanner,
		logger:            slog.Default(),
		readHeaderTimeout: DefaultReadHeaderTimeout,
		shutdownTimeout:   DefaultShutdownTimeout,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/scan", s.handleScan)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe listens on addr and serves until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("server listening", "address", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// scanRequest is the POST /scan body.
type scanRequest struct {
	Host string `json:"host"`
}

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Error string `json:"error"`
}

// handleScan runs a scan for the requested host.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var host string

	switch r.Method {
	case http.MethodGet:
		host = r.URL.Query().Get("host")
	case http.MethodPost:
		var req scanRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err := dec.Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, ErrInvalidBody)
			return
		}
		host = req.Host
	default:
		w.Header().Set("Allow", "GET, POST")
		s.writeError(w, http.StatusMethodNotAllowed, errors.New(http.StatusText(http.StatusMethodNotAllowed)))
		return
	}

	scanReport, err := s.scanner.Scan(r.Context(), host)
	if err != nil {
		if pipeline.IsInputError(err) {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		s.logger.Error("scan failed", "host", host, "error", err)
		s.writeError(w, http.StatusInternalServerError, errors.New("scan failed"))
		return
	}

	s.logger.Debug("scan served",
		"host", scanReport.Host,
		"services", len(scanReport.Services),
		"elapsed", scanReport.Elapsed,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := report.NewJSONWriter(w).WriteServices(scanReport); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

// handleHealth answers liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		s.writeError(w, http.StatusMethodNotAllowed, errors.New(http.StatusText(http.StatusMethodNotAllowed)))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}

// writeError writes a JSON error body with the given status code.
func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if encErr := json.NewEncoder(w).Encode(errorResponse{Error: err.Error()}); encErr != nil {
		s.logger.Warn("failed to write error response", "error", encErr)
	}
}
