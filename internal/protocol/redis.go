package protocol

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/nao1215/authprobe/internal/model"
	"github.com/redis/go-redis/v9"
)

// Redis protocol constants.
const (
	redisName        = "Redis"
	redisDefaultPort = 6379
)

// redisAuthReplies are reply prefixes that mean the server refuses clients
// without credentials. DENIED is sent by protected mode.
var redisAuthReplies = []string{"NOAUTH", "WRONGPASS", "DENIED"}

// RedisDriver classifies Redis servers.
//
// A client connection that reaches a ready state (PING answered) means the
// server is open without authentication; the session is then ended with an
// explicit QUIT. An auth challenge means the server is secured. Every other
// connection-level failure is reported as indeterminate, which callers treat
// as secured. A port held by a different protocol therefore looks the same
// as one that enforces authentication.
type RedisDriver struct {
	opts options
}

// NewRedisDriver creates a Redis driver.
func NewRedisDriver(opts ...Option) *RedisDriver {
	return &RedisDriver{opts: newOptions(opts)}
}

// Name returns the display name.
func (d *RedisDriver) Name() string {
	return redisName
}

// DefaultPort returns the default Redis port.
func (d *RedisDriver) DefaultPort() uint16 {
	return redisDefaultPort
}

// Handshake classifies the Redis server at host:port.
func (d *RedisDriver) Handshake(ctx context.Context, host string, port uint16) model.Outcome {
	address := net.JoinHostPort(host, strconv.Itoa(int(port)))
	logger := d.opts.logger.With("service", redisName, "address", address)

	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Dialer:       d.opts.dialer.DialContext,
		DialTimeout:  d.opts.timeout,
		ReadTimeout:  d.opts.timeout,
		WriteTimeout: d.opts.timeout,
		MaxRetries:   -1,
		PoolSize:     1,
	})
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debug("failed to close client", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, d.opts.timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		outcome := classifyRedisError(err)
		logger.Debug("handshake failed", "outcome", outcome.Kind, "error", err)
		return outcome
	}

	quitCtx, quitCancel := cleanupContext(ctx, d.opts.timeout)
	defer quitCancel()
	if err := client.Do(quitCtx, "QUIT").Err(); err != nil {
		logger.Debug("QUIT failed", "error", err)
	}

	logger.Debug("handshake complete", "outcome", model.OutcomeUnauthenticated)
	return model.Unauthenticated()
}

// classifyRedisError maps a failed PING to an outcome.
func classifyRedisError(err error) model.Outcome {
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		for _, prefix := range redisAuthReplies {
			if strings.HasPrefix(redisErr.Error(), prefix) {
				return model.Authenticated()
			}
		}
	}
	return model.Indeterminate(err.Error())
}
