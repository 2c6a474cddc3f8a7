package model

import (
	"encoding/json"
	"testing"
)

// allOutcomes returns one outcome of every kind.
func allOutcomes() []Outcome {
	return []Outcome{
		Unreachable(),
		ProtocolMismatch(),
		Unauthenticated(),
		Authenticated(),
		Indeterminate("i/o timeout"),
	}
}

// TestOutcomeStatus tests the mapping from outcome kinds to reported status.
func TestOutcomeStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		outcome Outcome
		want    ServiceStatus
	}{
		{
			name:    "unreachable is all false",
			outcome: Unreachable(),
			want:    ServiceStatus{},
		},
		{
			name:    "protocol mismatch only opens the port",
			outcome: ProtocolMismatch(),
			want:    ServiceStatus{PortOpen: true},
		},
		{
			name:    "unauthenticated matches protocol without auth",
			outcome: Unauthenticated(),
			want:    ServiceStatus{PortOpen: true, ProtocolMatched: true},
		},
		{
			name:    "authenticated is all true",
			outcome: Authenticated(),
			want:    ServiceStatus{PortOpen: true, ProtocolMatched: true, AuthEnforced: true},
		},
		{
			name:    "indeterminate is reported as secured",
			outcome: Indeterminate("connection reset"),
			want:    ServiceStatus{PortOpen: true, ProtocolMatched: true, AuthEnforced: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.outcome.Status(); got != tt.want {
				t.Errorf("got %+v, expected %+v", got, tt.want)
			}
		})
	}
}

// TestOutcomeStatusInvariants verifies every constructible status is consistent.
func TestOutcomeStatusInvariants(t *testing.T) {
	t.Parallel()

	for _, o := range allOutcomes() {
		s := o.Status()
		if !s.Consistent() {
			t.Errorf("outcome %s produced inconsistent status %+v", o.Kind, s)
		}
		if !s.ProtocolMatched && s.AuthEnforced {
			t.Errorf("outcome %s: auth enforced without protocol match", o.Kind)
		}
		if !s.PortOpen && (s.ProtocolMatched || s.AuthEnforced) {
			t.Errorf("outcome %s: protocol or auth set on closed port", o.Kind)
		}
	}
}

// TestServiceStatusConsistent tests detection of inconsistent combinations.
func TestServiceStatusConsistent(t *testing.T) {
	t.Parallel()

	t.Run("closed port with matched protocol is inconsistent", func(t *testing.T) {
		t.Parallel()
		s := ServiceStatus{ProtocolMatched: true}
		if s.Consistent() {
			t.Error("expected inconsistent status")
		}
	})

	t.Run("auth without protocol is inconsistent", func(t *testing.T) {
		t.Parallel()
		s := ServiceStatus{PortOpen: true, AuthEnforced: true}
		if s.Consistent() {
			t.Error("expected inconsistent status")
		}
	})
}

// TestServiceStatusJSON tests the stable wire field names.
func TestServiceStatusJSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Unauthenticated().Status())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `{"port":true,"protocol":true,"secured":false}`
	if string(data) != want {
		t.Errorf("got %s, expected %s", data, want)
	}
}

// TestOutcomeKindString tests kind names.
func TestOutcomeKindString(t *testing.T) {
	t.Parallel()

	if OutcomeIndeterminate.String() != "indeterminate" {
		t.Errorf("got %q", OutcomeIndeterminate.String())
	}
	if OutcomeKind(99).String() != "unknown" {
		t.Errorf("got %q", OutcomeKind(99).String())
	}
}

// TestIndeterminatef tests reason formatting.
func TestIndeterminatef(t *testing.T) {
	t.Parallel()

	o := Indeterminatef("insert failed: %s", "code 8000")
	if o.Kind != OutcomeIndeterminate {
		t.Errorf("got kind %s", o.Kind)
	}
	if o.Reason != "insert failed: code 8000" {
		t.Errorf("got reason %q", o.Reason)
	}
}
