package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for identity inputs.
var (
	// ErrIdentityNotFound indicates a referenced identity does not exist.
	ErrIdentityNotFound = errors.New("identity: not found")

	// ErrInvalidSnapshot indicates a state snapshot cannot be processed
	// (e.g., it contains values that are not serializable).
	ErrInvalidSnapshot = errors.New("identity: invalid snapshot")

	// ErrInvalidInput indicates a malformed request value, such as a
	// missing identity ID or an unknown relationship.
	ErrInvalidInput = errors.New("identity: invalid input")
)

// Identity is the minimal identity record the engine needs: enough to
// validate that a lineage fact references something real.
type Identity struct {
	// ID is the platform-wide identity identifier.
	ID string `json:"id"`

	// Name is the human-readable identity name.
	Name string `json:"name"`

	// Type is the identity kind (e.g., "api_key", "service_account",
	// "ai_agent", "certificate").
	Type string `json:"type"`
}

// Snapshot is an opaque point-in-time view of an identity's attribute set.
// The engine treats it as a free-form key/value map; the morphing rules only
// interpret a small set of well-known keys ("scopes", "permissions",
// "location", "region", "owner", "type").
type Snapshot map[string]any

// Validate checks that the snapshot is usable. A nil snapshot is valid
// (it represents an identity with no recorded state); a snapshot holding
// non-serializable values is not.
func (s Snapshot) Validate() error {
	if s == nil {
		return nil
	}
	if _, err := json.Marshal(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return nil
}

// Clone returns a shallow copy of the snapshot. Nested values are shared;
// the engine never mutates snapshot contents.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Activity is one entry in an identity's activity history. The engine both
// consumes activities (drift analysis) and emits them (audit trail).
type Activity struct {
	// IdentityID is the identity this activity belongs to.
	IdentityID string `json:"identity_id"`

	// Type classifies the activity (e.g., "api_call", "lineage_recorded").
	Type string `json:"type"`

	// Source identifies the component that produced the activity.
	Source string `json:"source"`

	// Timestamp is when the activity occurred.
	Timestamp time.Time `json:"timestamp"`

	// Metadata carries free-form context. Drift analysis reads the
	// "resource" and "region" keys when present.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Resource returns the "resource" metadata value, or "" if absent or not a
// string. Activities missing the key are skipped by the API-usage factor.
func (a Activity) Resource() string {
	return a.metaString("resource")
}

// Region returns the "region" metadata value, or "" if absent or not a string.
func (a Activity) Region() string {
	return a.metaString("region")
}

func (a Activity) metaString(key string) string {
	if a.Metadata == nil {
		return ""
	}
	v, ok := a.Metadata[key].(string)
	if !ok {
		return ""
	}
	return v
}
