// Package identity defines the shared domain types for non-human identities
// and the collaborator interfaces the engine depends on.
//
// The engine never owns identity records, activity history, or baselines;
// it consumes them through the interfaces in this package. Callers supply
// implementations backed by whatever store the surrounding platform uses,
// with all tenant scoping already applied.
package identity
