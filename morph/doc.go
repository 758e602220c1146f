// Package morph detects morphing events: discrete identity state transitions
// that materially change an identity's risk posture.
//
// The Detector compares a previous and a new state snapshot for one identity
// and emits zero or more typed, risk-scored events. The built-in rules are
// independent and additive, so one state change can fire several typed
// events at once. Operators can extend the rule set with CEL expressions
// evaluated over the before/after snapshots and the changed-field list.
//
// Detected events are kept in a bounded per-identity in-memory history for
// quick lookback; durable persistence is the caller's responsibility.
package morph
