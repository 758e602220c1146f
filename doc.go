// Package engine implements the identity lineage and behavioral drift
// engine for non-human identities: API keys, service accounts, AI agents,
// certificates, and other machine credentials.
//
// The engine performs three kinds of analysis over identities supplied by
// the surrounding platform:
//
//   - Lineage: a provenance graph describing how each identity was created,
//     rotated, cloned, or delegated from another, with defensive traversal
//     over potentially corrupted audit data.
//   - Morphing detection: typed, risk-scored events for state transitions
//     that materially change an identity's risk posture.
//   - Drift analysis: a weighted composite score of how far recent behavior
//     has diverged from the identity's learned baseline, classified into a
//     risk level with actionable recommendations.
//
// # Architecture
//
// The engine is a pure computation core. It has no network surface and
// performs no I/O of its own beyond the collaborators injected at
// construction: an identity resolver, an audit-trail appender, an activity
// history reader, and a baseline reader (see package identity). Persistence
// of results, notification, and enforcement remain the caller's
// responsibility.
//
// # Getting Started
//
//	eng, err := engine.New(identity.Deps{
//		Identities: identityStore,
//		Audit:      auditLog,
//		Activities: activityStore,
//		Baselines:  baselineStore,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	node, err := eng.RecordNode(ctx, lineage.RecordRequest{
//		IdentityID:       "key-1",
//		ParentIdentityID: "svc-account-1",
//		Relationship:     lineage.RelationshipCreatedFrom,
//		CreatedBy:        "provisioner",
//	})
//
//	events, err := eng.DetectMorphing(ctx, "key-1", previousState, newState)
//
//	analysis, err := eng.AnalyzeDrift(ctx, "key-1")
//
// All operations are safe for concurrent use across identities. Lineage
// nodes are stored through the lineage.Store interface; the in-memory store
// is the default, with Redis and etcd implementations for durable backing.
package engine
