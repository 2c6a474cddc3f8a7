// Package model defines the data structures shared by the probe, the protocol
// drivers, the detection pipeline and the report writers.
//
// This package contains the following main types:
//   - Outcome: The classification produced by one handshake attempt
//   - ServiceStatus: The port/protocol/secured triple reported per service
//   - ScanReport: The ordered per-service result set for one host
//
// Design decision: ServiceStatus can only be built from an Outcome. The
// implications "port closed implies protocol unmatched" and "protocol unmatched
// implies auth not enforced" are therefore enforced by construction instead of
// by validation at every call site.
package model
