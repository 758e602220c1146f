package morph

import (
	"fmt"
	"time"

	"github.com/nhiguard/engine/identity"
)

// EventType classifies a detected morphing event.
type EventType string

const (
	// EventScopeExpansion indicates the identity gained scopes or permissions.
	EventScopeExpansion EventType = "scope_expansion"

	// EventPermissionEscalation indicates the identity gained privileged access.
	EventPermissionEscalation EventType = "permission_escalation"

	// EventGeographicShift indicates the identity's operating location changed.
	EventGeographicShift EventType = "geographic_shift"

	// EventBehavioralDrift indicates behavior diverged from the learned baseline.
	EventBehavioralDrift EventType = "behavioral_drift"

	// EventCredentialChange indicates the identity's credential material changed.
	EventCredentialChange EventType = "credential_change"

	// EventOwnerChange indicates the identity's owner changed.
	EventOwnerChange EventType = "owner_change"

	// EventTypeChange indicates the identity's fundamental type changed.
	EventTypeChange EventType = "type_change"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid returns true if the event type is one of the defined values.
func (t EventType) IsValid() bool {
	switch t {
	case EventScopeExpansion, EventPermissionEscalation, EventGeographicShift,
		EventBehavioralDrift, EventCredentialChange, EventOwnerChange, EventTypeChange:
		return true
	default:
		return false
	}
}

// Validate checks that the event type is valid.
func (t EventType) Validate() error {
	if !t.IsValid() {
		return fmt.Errorf("invalid event type: %q", string(t))
	}
	return nil
}

// ParseEventType parses a string into an EventType value.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// AllEventTypes returns every defined event type.
func AllEventTypes() []EventType {
	return []EventType{
		EventScopeExpansion,
		EventPermissionEscalation,
		EventGeographicShift,
		EventBehavioralDrift,
		EventCredentialChange,
		EventOwnerChange,
		EventTypeChange,
	}
}

// Event is one detected risky transition. Events are immutable once created
// and form an append-only per-identity history.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// IdentityID is the identity whose state transitioned.
	IdentityID string `json:"identity_id"`

	// Type classifies the transition.
	Type EventType `json:"type"`

	// PreviousState is the full snapshot before the transition.
	PreviousState identity.Snapshot `json:"previous_state,omitempty"`

	// NewState is the full snapshot after the transition.
	NewState identity.Snapshot `json:"new_state,omitempty"`

	// ChangedFields lists the fields relevant to this event's rule, not
	// the full changed-field set of the comparison.
	ChangedFields []string `json:"changed_fields"`

	// RiskScore quantifies the transition's risk in [0, 1].
	RiskScore float64 `json:"risk_score"`

	// DetectedAt is when the comparison ran.
	DetectedAt time.Time `json:"detected_at"`

	// Metadata carries rule-specific context (e.g. added scopes).
	Metadata map[string]any `json:"metadata,omitempty"`
}
