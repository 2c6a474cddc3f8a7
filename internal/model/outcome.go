package model

import "fmt"

// OutcomeKind enumerates the possible results of a detection run for one service.
type OutcomeKind int

const (
	// OutcomeUnreachable means no TCP connection could be established.
	OutcomeUnreachable OutcomeKind = iota

	// OutcomeProtocolMismatch means the port accepted a connection but the
	// expected protocol did not answer on it.
	OutcomeProtocolMismatch

	// OutcomeUnauthenticated means the protocol answered and accepted a
	// privileged operation without credentials.
	OutcomeUnauthenticated

	// OutcomeAuthenticated means the protocol answered and rejected the
	// operation with an authentication or authorization error.
	OutcomeAuthenticated

	// OutcomeIndeterminate means the protocol was assumed to be present but
	// the driver could not classify the failure. It is reported as secured.
	OutcomeIndeterminate
)

// String returns a short machine-friendly name for the kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeUnreachable:
		return "unreachable"
	case OutcomeProtocolMismatch:
		return "protocol_mismatch"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of a single detection run.
// Reason is only meaningful for OutcomeIndeterminate, where it carries the
// error text that could not be classified further.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Unreachable returns an Outcome for a closed or filtered port.
func Unreachable() Outcome {
	return Outcome{Kind: OutcomeUnreachable}
}

// ProtocolMismatch returns an Outcome for a port held by another protocol.
func ProtocolMismatch() Outcome {
	return Outcome{Kind: OutcomeProtocolMismatch}
}

// Unauthenticated returns an Outcome for an open, credential-less service.
func Unauthenticated() Outcome {
	return Outcome{Kind: OutcomeUnauthenticated}
}

// Authenticated returns an Outcome for a service that enforces credentials.
func Authenticated() Outcome {
	return Outcome{Kind: OutcomeAuthenticated}
}

// Indeterminate returns an Outcome for an unclassified failure.
func Indeterminate(reason string) Outcome {
	return Outcome{Kind: OutcomeIndeterminate, Reason: reason}
}

// Indeterminatef is like Indeterminate but formats the reason.
func Indeterminatef(format string, args ...any) Outcome {
	return Indeterminate(fmt.Sprintf(format, args...))
}

// Status maps the outcome to the reported port/protocol/secured triple.
func (o Outcome) Status() ServiceStatus {
	switch o.Kind {
	case OutcomeProtocolMismatch:
		return ServiceStatus{PortOpen: true}
	case OutcomeUnauthenticated:
		return ServiceStatus{PortOpen: true, ProtocolMatched: true}
	case OutcomeAuthenticated, OutcomeIndeterminate:
		return ServiceStatus{PortOpen: true, ProtocolMatched: true, AuthEnforced: true}
	default:
		return ServiceStatus{}
	}
}

// Label returns a human-readable description of the outcome.
func (o Outcome) Label() string {
	switch o.Kind {
	case OutcomeUnreachable:
		return "port closed"
	case OutcomeProtocolMismatch:
		return "port open, different protocol"
	case OutcomeUnauthenticated:
		return "open, no authentication"
	case OutcomeAuthenticated:
		return "open, authentication required"
	case OutcomeIndeterminate:
		return "open, assumed secured"
	default:
		return "unknown"
	}
}
