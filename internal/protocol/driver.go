package protocol

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/authprobe/internal/model"
	"github.com/nao1215/authprobe/internal/transport"
)

// DefaultTimeout bounds every connect, read and write of a handshake.
const DefaultTimeout = 1 * time.Second

// Driver classifies the service listening on a port that is known to be
// open. Implementations never return errors: every failure is folded into
// the Outcome according to the driver's classification rules, and every
// session opened is closed before Handshake returns.
//
// Drivers are stateless between calls and safe for concurrent use.
type Driver interface {
	// Handshake performs the protocol-level exchange against host:port.
	Handshake(ctx context.Context, host string, port uint16) model.Outcome

	// Name returns the display name used in reports (e.g., "MongoDB").
	Name() string

	// DefaultPort returns the well-known port of the protocol.
	DefaultPort() uint16
}

// options holds the settings shared by all drivers.
type options struct {
	dialer  transport.Dialer
	timeout time.Duration
	logger  *slog.Logger

	// MongoDB notice document; ignored by other drivers.
	noticeEnabled    bool
	noticeDatabase   string
	noticeCollection string
}

// Option configures a Driver.
type Option func(*options)

// WithDialer sets the dialer used for driver connections.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) {
		if d != nil {
			o.dialer = d
		}
	}
}

// WithTimeout sets the handshake timeout. It bounds the whole exchange,
// dial included; closing the session afterwards gets its own budget of the
// same length. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithNotice enables or disables the MongoDB notice write.
// When disabled, write access is not tested; listDatabases is run instead.
func WithNotice(enabled bool) Option {
	return func(o *options) {
		o.noticeEnabled = enabled
	}
}

// WithNoticeTarget sets the database and collection of the MongoDB notice.
// Empty values keep the defaults.
func WithNoticeTarget(database, collection string) Option {
	return func(o *options) {
		if database != "" {
			o.noticeDatabase = database
		}
		if collection != "" {
			o.noticeCollection = collection
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		dialer:           transport.Direct(),
		timeout:          DefaultTimeout,
		logger:           slog.Default(),
		noticeEnabled:    true,
		noticeDatabase:   DefaultNoticeDatabase,
		noticeCollection: DefaultNoticeCollection,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// cleanupContext returns a context for releasing a session. It survives
// cancellation of ctx so that sessions are closed on every path.
func cleanupContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
