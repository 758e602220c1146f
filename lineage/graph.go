package lineage

import "time"

// MaxTraversalDepth is the hard bound on every graph walk. Lineage is
// long-lived audit data that cannot be assumed clean; the cap guarantees
// termination even when parent pointers form a cycle.
const MaxTraversalDepth = 10

// Edge is one parent-to-child derivation in a materialized graph view.
type Edge struct {
	// FromIdentityID is the parent identity.
	FromIdentityID string `json:"from_identity_id"`

	// ToIdentityID is the derived identity.
	ToIdentityID string `json:"to_identity_id"`

	// Relationship is how the child was derived from the parent.
	Relationship Relationship `json:"relationship"`

	// CreatedAt is when the derivation was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Graph is a lineage subtree materialized on demand. It is a view, never
// stored: nodes reachable from the root of the queried identity's chain,
// bounded by MaxTraversalDepth.
type Graph struct {
	// Nodes are the lineage nodes included in the view.
	Nodes []*Node `json:"nodes"`

	// Edges are the parent-to-child derivations between included nodes.
	Edges []Edge `json:"edges"`

	// RootID is the identity at the top of the chain, or "" when the
	// queried identity has no recorded lineage.
	RootID string `json:"root_id,omitempty"`

	// Depth is the deepest level reached while expanding from the root.
	Depth int `json:"depth"`
}

// IsEmpty returns true if the graph contains no nodes.
func (g *Graph) IsEmpty() bool {
	return len(g.Nodes) == 0
}
