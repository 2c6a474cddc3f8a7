package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/proxy"
)

// Dialer establishes TCP connections.
// *net.Dialer satisfies it, and so does the dialer returned by NewSOCKS5Dialer.
// The method set matches options.ContextDialer in the MongoDB driver and the
// Dialer field in go-redis options.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Direct returns a dialer that uses the operating system's TCP stack.
// Timeouts are applied by the caller through the context.
func Direct() Dialer {
	return &net.Dialer{}
}

// NewSOCKS5Dialer returns a dialer that tunnels connections through the
// SOCKS5 proxy at proxyAddress. No proxy authentication is sent.
//
// The proxy is not contacted here; call CheckSOCKS5 to verify it.
func NewSOCKS5Dialer(proxyAddress string) (Dialer, error) {
	if !isValidProxyAddress(proxyAddress) {
		return nil, ErrInvalidProxyAddress
	}

	// Tunnel-level connect timeouts come from the per-dial context.
	d, err := proxy.SOCKS5("tcp", proxyAddress, nil, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	return &socksDialer{dialer: d, address: proxyAddress}, nil
}

// socksDialer adapts a proxy.Dialer to the Dialer interface.
type socksDialer struct {
	dialer  proxy.Dialer
	address string
}

// DialContext dials through the proxy, honoring ctx.
func (s *socksDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if cd, ok := s.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}
	return dialWithContext(ctx, s.dialer, network, address)
}

// String returns the proxy address for logging.
func (s *socksDialer) String() string {
	return "socks5://" + s.address
}

// dialWithContext dials with a dialer that has no context support.
// If ctx ends first, a connection that completes later is closed so that no
// socket outlives the attempt.
func dialWithContext(ctx context.Context, dialer proxy.Dialer, network, address string) (net.Conn, error) {
	type dialResult struct {
		conn net.Conn
		err  error
	}

	resultCh := make(chan dialResult, 1)

	go func() {
		conn, err := dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close() //nolint:errcheck // late connection, nobody is waiting
			}
		}()
		return nil, ctx.Err()
	case result := <-resultCh:
		return result.conn, result.err
	}
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}
