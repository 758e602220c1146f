// Package drift quantifies how far an identity's recent behavior has
// diverged from its learned baseline.
//
// The Analyzer computes three independent weighted factors over a recent
// activity window — new API resources, activity outside baseline hours, and
// activity from new geographic regions — then combines them into a 0-1 drift
// score, classifies the score into a risk level, and derives deterministic
// recommendations. A missing baseline is not an error: it yields a zero
// score with no factors.
package drift
