// Package pipeline runs the multi-stage detection for a set of services on
// one host.
//
// Each service goes through the same stages, in order:
//
//	TCP reachability (probe) -> protocol handshake (driver) -> ServiceStatus
//
// The handshake only runs when the port is open. The Coordinator runs one
// detection per service concurrently using errgroup and assembles a
// ScanReport in configuration order. A failure inside one service never
// touches the others: panics are recovered and reported on that entry.
//
// Scan returns input errors (see IsInputError) and ErrScanInterrupted when
// its context ends early. Every other failure is recorded in the report.
package pipeline
