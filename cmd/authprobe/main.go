// Package main provides the entry point for the authprobe CLI.
//
// authprobe checks whether the MongoDB and Redis instances of a host accept
// clients without credentials. For each service it reports whether the port
// is open, whether the expected protocol answers and whether that protocol
// enforces authentication.
//
// Usage:
//
//	authprobe scan <host>
//	authprobe serve --listen 127.0.0.1:8080
//
// See --help for all available options.
package main

// main is the entry point for authprobe.
func main() {
	Execute()
}
