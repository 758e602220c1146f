package morph

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nhiguard/engine/identity"
)

// DefaultHistoryLimit is the per-identity cap on the in-memory recent-event
// buffer. The buffer is an operational cache for quick lookback, not the
// system of record.
const DefaultHistoryLimit = 50

// privilegedKeywords mark added scopes that escalate a scope expansion to
// near-maximal risk.
var privilegedKeywords = []string{"admin", "write", "delete", "execute", "root", "sudo"}

const (
	riskScopePrivileged = 0.9
	riskScopeExpansion  = 0.5
	riskGeographicShift = 0.6
	riskOwnerChange     = 0.7
	riskTypeChange      = 0.8
)

// Detector compares identity state snapshots and emits morphing events.
// All methods are safe for concurrent use; comparisons for different
// identities run fully in parallel.
type Detector struct {
	audit      identity.ActivityLog
	logger     *slog.Logger
	now        func() time.Time
	historyCap int
	rules      []CompiledRule

	mu      sync.RWMutex
	history map[string][]*Event
}

// DetectorOption configures a Detector.
type DetectorOption func(*Detector)

// WithHistoryLimit sets the per-identity recent-event cap.
func WithHistoryLimit(limit int) DetectorOption {
	return func(d *Detector) {
		if limit > 0 {
			d.historyCap = limit
		}
	}
}

// WithRules installs compiled custom rules evaluated after the built-in set.
func WithRules(rules []CompiledRule) DetectorOption {
	return func(d *Detector) {
		d.rules = rules
	}
}

// WithClock overrides the detector clock. Intended for tests.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) {
		d.now = now
	}
}

// NewDetector creates a morphing detector. The audit log receives one
// activity per emitted event; it may be nil to disable audit emission.
func NewDetector(audit identity.ActivityLog, logger *slog.Logger, opts ...DetectorOption) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		audit:      audit,
		logger:     logger,
		now:        time.Now,
		historyCap: DefaultHistoryLimit,
		history:    make(map[string][]*Event),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect compares two snapshots of one identity and returns every morphing
// event the transition triggers. Rules are independent and additive: one
// comparison can yield several typed events. Comparing a snapshot to itself
// always yields zero events.
func (d *Detector) Detect(ctx context.Context, identityID string, previous, next identity.Snapshot) ([]*Event, error) {
	if identityID == "" {
		return nil, fmt.Errorf("%w: identity ID is required", identity.ErrInvalidInput)
	}
	if err := previous.Validate(); err != nil {
		return nil, fmt.Errorf("previous snapshot: %w", err)
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("new snapshot: %w", err)
	}

	changed := changedFields(previous, next)
	if len(changed) == 0 {
		return nil, nil
	}

	detectedAt := d.now()
	events := []*Event{}

	newEvent := func(eventType EventType, risk float64, fields []string, metadata map[string]any) *Event {
		return &Event{
			ID:            uuid.New().String(),
			IdentityID:    identityID,
			Type:          eventType,
			PreviousState: previous.Clone(),
			NewState:      next.Clone(),
			ChangedFields: fields,
			RiskScore:     risk,
			DetectedAt:    detectedAt,
			Metadata:      metadata,
		}
	}

	if ev := d.detectScopeExpansion(previous, next, changed, newEvent); ev != nil {
		events = append(events, ev)
	}
	if ev := d.detectFieldChange(changed, []string{"location", "region"}, EventGeographicShift, riskGeographicShift, previous, next, newEvent); ev != nil {
		events = append(events, ev)
	}
	if ev := d.detectFieldChange(changed, []string{"owner"}, EventOwnerChange, riskOwnerChange, previous, next, newEvent); ev != nil {
		events = append(events, ev)
	}
	if ev := d.detectFieldChange(changed, []string{"type"}, EventTypeChange, riskTypeChange, previous, next, newEvent); ev != nil {
		events = append(events, ev)
	}

	for _, rule := range d.rules {
		fired, err := rule.eval(previous, next, changed)
		if err != nil {
			d.logger.Warn("custom morph rule evaluation failed, skipping",
				"rule", rule.rule.Name, "identity_id", identityID, "error", err)
			continue
		}
		if fired {
			events = append(events, newEvent(rule.rule.Event, rule.rule.Risk, changed, map[string]any{
				"rule": rule.rule.Name,
			}))
		}
	}

	if len(events) == 0 {
		return nil, nil
	}

	d.appendHistory(identityID, events)

	for _, ev := range events {
		d.appendAudit(ctx, ev)
		d.logger.Info("morphing event detected",
			"identity_id", identityID,
			"event_type", ev.Type.String(),
			"risk_score", ev.RiskScore,
			"changed_fields", ev.ChangedFields)
	}

	return events, nil
}

// History returns up to limit recent events for the identity, newest first.
// A limit <= 0 returns the full buffered history.
func (d *Detector) History(identityID string, limit int) []*Event {
	d.mu.RLock()
	defer d.mu.RUnlock()

	buffered := d.history[identityID]
	if limit <= 0 || limit > len(buffered) {
		limit = len(buffered)
	}

	// The buffer is ordered oldest first; reverse into newest first.
	out := make([]*Event, 0, limit)
	for i := len(buffered) - 1; i >= len(buffered)-limit; i-- {
		out = append(out, buffered[i])
	}
	return out
}

func (d *Detector) appendHistory(identityID string, events []*Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buffered := append(d.history[identityID], events...)
	if excess := len(buffered) - d.historyCap; excess > 0 {
		buffered = buffered[excess:]
	}
	d.history[identityID] = buffered
}

func (d *Detector) appendAudit(ctx context.Context, ev *Event) {
	if d.audit == nil {
		return
	}
	err := d.audit.AppendActivity(ctx, identity.Activity{
		IdentityID: ev.IdentityID,
		Type:       "morphing_event_detected",
		Source:     "morph",
		Timestamp:  ev.DetectedAt,
		Metadata: map[string]any{
			"event_id":   ev.ID,
			"event_type": ev.Type.String(),
			"risk_score": ev.RiskScore,
		},
	})
	if err != nil {
		d.logger.Warn("audit append failed",
			"identity_id", ev.IdentityID, "event_type", ev.Type.String(), "error", err)
	}
}

// detectScopeExpansion fires when the scope set strictly grew. Added scopes
// containing a privileged keyword raise the risk to near-maximal.
func (d *Detector) detectScopeExpansion(previous, next identity.Snapshot, changed []string, newEvent func(EventType, float64, []string, map[string]any) *Event) *Event {
	fields := intersect(changed, []string{"scopes", "permissions"})
	if len(fields) == 0 {
		return nil
	}

	prevScopes := scopeSet(previous, fields)
	nextScopes := scopeSet(next, fields)
	if len(nextScopes) <= len(prevScopes) {
		return nil
	}

	added := []string{}
	for scope := range nextScopes {
		if !prevScopes[scope] {
			added = append(added, scope)
		}
	}
	sort.Strings(added)

	risk := riskScopeExpansion
	if anyPrivileged(added) {
		risk = riskScopePrivileged
	}

	return newEvent(EventScopeExpansion, risk, fields, map[string]any{
		"added_scopes":   added,
		"previous_count": len(prevScopes),
		"new_count":      len(nextScopes),
	})
}

// detectFieldChange fires a fixed-risk event when any of the watched fields
// changed, carrying the before/after values in metadata.
func (d *Detector) detectFieldChange(changed, watched []string, eventType EventType, risk float64, previous, next identity.Snapshot, newEvent func(EventType, float64, []string, map[string]any) *Event) *Event {
	fields := intersect(changed, watched)
	if len(fields) == 0 {
		return nil
	}

	metadata := map[string]any{}
	for _, field := range fields {
		metadata["previous_"+field] = previous[field]
		metadata["new_"+field] = next[field]
	}
	return newEvent(eventType, risk, fields, metadata)
}

// changedFields returns the keys present in next whose value differs from
// previous, sorted for deterministic output.
func changedFields(previous, next identity.Snapshot) []string {
	changed := []string{}
	for key, newValue := range next {
		oldValue, existed := previous[key]
		if !existed || !reflect.DeepEqual(oldValue, newValue) {
			changed = append(changed, key)
		}
	}
	sort.Strings(changed)
	return changed
}

// scopeSet collects the string scope values held under the given snapshot
// fields. Both []string and []any values are accepted; anything else is
// ignored.
func scopeSet(snapshot identity.Snapshot, fields []string) map[string]bool {
	set := map[string]bool{}
	for _, field := range fields {
		switch values := snapshot[field].(type) {
		case []string:
			for _, v := range values {
				set[v] = true
			}
		case []any:
			for _, raw := range values {
				if v, ok := raw.(string); ok {
					set[v] = true
				}
			}
		}
	}
	return set
}

func anyPrivileged(scopes []string) bool {
	for _, scope := range scopes {
		lowered := strings.ToLower(scope)
		for _, keyword := range privilegedKeywords {
			if strings.Contains(lowered, keyword) {
				return true
			}
		}
	}
	return false
}

func intersect(changed, watched []string) []string {
	out := []string{}
	for _, field := range watched {
		for _, c := range changed {
			if c == field {
				out = append(out, field)
				break
			}
		}
	}
	return out
}
