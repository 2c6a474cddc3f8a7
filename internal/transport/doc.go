// Package transport provides the TCP dialers used by the reachability probe
// and by the protocol drivers.
//
// Three transports are supported:
//   - Direct: the operating system's TCP stack via net.Dialer
//   - SOCKS5: any SOCKS5 proxy via golang.org/x/net/proxy
//   - Embedded Tor: a tornago-managed Tor daemon exposing a SOCKS5 port
//
// Every transport satisfies the Dialer interface, which is also the dialer
// shape accepted by the MongoDB and Redis client libraries. This lets a single
// dialer be threaded through every suspension point of a scan.
//
// The package also validates .onion hosts, which can only be reached through
// an anonymizing transport.
package transport
