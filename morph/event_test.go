package morph

import "testing"

func TestEventType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
		want      bool
	}{
		{"scope_expansion is valid", EventScopeExpansion, true},
		{"permission_escalation is valid", EventPermissionEscalation, true},
		{"geographic_shift is valid", EventGeographicShift, true},
		{"behavioral_drift is valid", EventBehavioralDrift, true},
		{"credential_change is valid", EventCredentialChange, true},
		{"owner_change is valid", EventOwnerChange, true},
		{"type_change is valid", EventTypeChange, true},
		{"empty is invalid", EventType(""), false},
		{"unknown is invalid", EventType("rename"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("EventType.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseEventType(t *testing.T) {
	got, err := ParseEventType("owner_change")
	if err != nil {
		t.Fatalf("ParseEventType(owner_change) error = %v", err)
	}
	if got != EventOwnerChange {
		t.Errorf("ParseEventType(owner_change) = %v, want %v", got, EventOwnerChange)
	}

	if _, err := ParseEventType("bogus"); err == nil {
		t.Error("ParseEventType(bogus) expected error, got nil")
	}
}

func TestAllEventTypes(t *testing.T) {
	all := AllEventTypes()
	if len(all) != 7 {
		t.Fatalf("AllEventTypes() returned %d values, want 7", len(all))
	}
	for _, et := range all {
		if !et.IsValid() {
			t.Errorf("AllEventTypes() contains invalid value %q", et)
		}
	}
}
