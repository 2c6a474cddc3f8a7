// Package probe checks whether a TCP port accepts connections.
//
// The Prober never returns an error: refused connections, timeouts, DNS
// failures and unreachable networks all collapse to "not reachable". Every
// connection it opens is closed before Reachable returns, including one
// that completes after the timeout fired.
package probe
