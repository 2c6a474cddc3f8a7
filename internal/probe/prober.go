package probe

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/nao1215/authprobe/internal/transport"
)

// DefaultTimeout is the hard bound on one reachability check.
const DefaultTimeout = 1 * time.Second

// Prober tests TCP reachability of host:port pairs.
// A Prober is safe for concurrent use.
type Prober struct {
	dialer  transport.Dialer
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithDialer sets the dialer used to open connections.
// Use it to route probes through a SOCKS5 proxy.
func WithDialer(d transport.Dialer) Option {
	return func(p *Prober) {
		if d != nil {
			p.dialer = d
		}
	}
}

// WithTimeout sets the hard bound on one check. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Prober) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Prober. It dials directly with DefaultTimeout unless
// configured otherwise.
func New(opts ...Option) *Prober {
	p := &Prober{
		dialer:  transport.Direct(),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reachable reports whether a TCP connection to host:port can be
// established within the timeout. It returns false on any failure.
func (p *Prober) Reachable(ctx context.Context, host string, port uint16) bool {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type dialResult struct {
		conn net.Conn
		err  error
	}

	// The dial runs in its own goroutine so the timeout holds even for
	// dialers that ignore the context.
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := p.dialer.DialContext(ctx, "tcp", address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close() //nolint:errcheck // late connection, nobody is waiting
			}
		}()
		p.logger.Debug("port check timed out", "address", address, "timeout", p.timeout)
		return false
	case r := <-resultCh:
		if r.err != nil {
			p.logger.Debug("port closed", "address", address, "error", r.err)
			return false
		}
		if err := r.conn.Close(); err != nil {
			p.logger.Debug("failed to close probe connection", "address", address, "error", err)
		}
		p.logger.Debug("port open", "address", address)
		return true
	}
}
