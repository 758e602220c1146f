package identity

import (
	"context"
	"fmt"
)

// Resolver looks up identity records. Implementations must return
// ErrIdentityNotFound (possibly wrapped) when the identity does not exist.
type Resolver interface {
	// GetIdentity returns the identity with the given ID.
	GetIdentity(ctx context.Context, id string) (*Identity, error)
}

// ActivityLog appends entries to the platform's durable audit trail.
// The engine calls it once per recorded lineage node and once per detected
// morphing event. Append failures are logged by the engine, never propagated:
// audit emission is best-effort.
type ActivityLog interface {
	// AppendActivity records one activity entry.
	AppendActivity(ctx context.Context, activity Activity) error
}

// ActivityHistory reads an identity's recent activity, most recent first.
type ActivityHistory interface {
	// RecentActivities returns up to limit activities for the identity,
	// ordered most-recent-first.
	RecentActivities(ctx context.Context, identityID string, limit int) ([]Activity, error)
}

// BaselineSource reads stored behavioral baselines. A missing baseline is
// not an error: implementations return (nil, nil) and the drift analyzer
// degrades to a zero score.
type BaselineSource interface {
	// GetBaseline returns the identity's baseline, or nil when none exists.
	GetBaseline(ctx context.Context, identityID string) (*Baseline, error)
}

// Deps bundles the collaborator set the engine is constructed with.
type Deps struct {
	// Identities resolves identity references. Required.
	Identities Resolver

	// Audit receives audit-trail activities. Required.
	Audit ActivityLog

	// Activities supplies recent activity windows for drift analysis. Required.
	Activities ActivityHistory

	// Baselines supplies stored behavior baselines. Required.
	Baselines BaselineSource
}

// Validate checks that all required collaborators are present.
func (d Deps) Validate() error {
	if d.Identities == nil {
		return fmt.Errorf("identity resolver is required")
	}
	if d.Audit == nil {
		return fmt.Errorf("activity log is required")
	}
	if d.Activities == nil {
		return fmt.Errorf("activity history is required")
	}
	if d.Baselines == nil {
		return fmt.Errorf("baseline source is required")
	}
	return nil
}
