package model

// ServiceStatus is the per-service result exposed to callers.
// The JSON field names are a stable contract: port, protocol, secured.
//
// The zero value is the status of an unreachable service. Any other value
// should be obtained through Outcome.Status so that the invariants hold.
type ServiceStatus struct {
	// PortOpen is true when a TCP connection to the port succeeded.
	PortOpen bool `json:"port"`

	// ProtocolMatched is true when the expected protocol answered.
	ProtocolMatched bool `json:"protocol"`

	// AuthEnforced is true when the protocol requires credentials.
	AuthEnforced bool `json:"secured"`
}

// Consistent reports whether the status satisfies the monotonic implications
// between its fields.
func (s ServiceStatus) Consistent() bool {
	if !s.PortOpen && s.ProtocolMatched {
		return false
	}
	if !s.ProtocolMatched && s.AuthEnforced {
		return false
	}
	return true
}

// Exposed reports whether the service answered without requiring credentials.
func (s ServiceStatus) Exposed() bool {
	return s.ProtocolMatched && !s.AuthEnforced
}
