package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nhiguard/engine/identity"
)

// RecordRequest describes one provenance fact to record.
type RecordRequest struct {
	// IdentityID is the identity being provisioned. Required; must resolve
	// to an existing identity.
	IdentityID string

	// ParentIdentityID is the identity it was derived from. Empty records
	// a lineage root.
	ParentIdentityID string

	// Relationship is how the identity was derived. Required.
	Relationship Relationship

	// CreatedBy identifies the provisioning actor.
	CreatedBy string

	// Purpose is a free-text justification.
	Purpose string

	// Metadata carries open key/value context.
	Metadata map[string]any
}

// Service records provenance facts and answers graph queries. All methods
// are safe for concurrent use; the Store enforces write atomicity and the
// traversals are read-only.
type Service struct {
	store      Store
	identities identity.Resolver
	audit      identity.ActivityLog
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a lineage service over the given store and collaborators.
func NewService(store Store, identities identity.Resolver, audit identity.ActivityLog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		identities: identities,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the service clock. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RecordNode records a provenance fact for an identity. The identity must
// exist, and no node may have been recorded for it before. On success one
// audit-trail activity is appended; audit failures are logged, not returned.
func (s *Service) RecordNode(ctx context.Context, req RecordRequest) (*Node, error) {
	if req.IdentityID == "" {
		return nil, fmt.Errorf("%w: identity ID is required", identity.ErrInvalidInput)
	}
	if err := req.Relationship.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidInput, err)
	}

	if _, err := s.identities.GetIdentity(ctx, req.IdentityID); err != nil {
		return nil, fmt.Errorf("resolve %s: %w", req.IdentityID, err)
	}

	node := &Node{
		ID:               uuid.New().String(),
		IdentityID:       req.IdentityID,
		ParentIdentityID: req.ParentIdentityID,
		Relationship:     req.Relationship,
		CreatedAt:        s.now(),
		CreatedBy:        req.CreatedBy,
		Purpose:          req.Purpose,
		Metadata:         req.Metadata,
	}
	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrInvalidInput, err)
	}

	if err := s.store.Put(ctx, node); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, identity.Activity{
		IdentityID: req.IdentityID,
		Type:       "lineage_node_recorded",
		Source:     "lineage",
		Timestamp:  node.CreatedAt,
		Metadata: map[string]any{
			"node_id":            node.ID,
			"parent_identity_id": req.ParentIdentityID,
			"relationship":       req.Relationship.String(),
			"created_by":         req.CreatedBy,
		},
	})

	s.logger.Info("lineage node recorded",
		"identity_id", req.IdentityID,
		"parent_identity_id", req.ParentIdentityID,
		"relationship", req.Relationship.String())

	return node, nil
}

// Graph materializes the lineage subtree containing the identity: the walk
// first climbs parent pointers to the chain's root, then expands children
// breadth-first from there. Both phases carry a visited set and stop at
// MaxTraversalDepth, so cyclic or dangling data yields a partial graph
// instead of an error. An unknown identity yields an empty graph.
func (s *Service) Graph(ctx context.Context, identityID string) (*Graph, error) {
	if _, err := s.store.Get(ctx, identityID); err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			return &Graph{Nodes: []*Node{}, Edges: []Edge{}}, nil
		}
		return nil, err
	}

	rootID := s.findRoot(ctx, identityID)

	graph := &Graph{Nodes: []*Node{}, Edges: []Edge{}, RootID: rootID}
	visited := map[string]bool{}

	type level struct {
		id    string
		depth int
	}
	queue := []level{{id: rootID, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if visited[current.id] || current.depth > MaxTraversalDepth {
			continue
		}
		visited[current.id] = true
		if current.depth > graph.Depth {
			graph.Depth = current.depth
		}

		if node, err := s.store.Get(ctx, current.id); err == nil {
			graph.Nodes = append(graph.Nodes, node)
		}
		if current.depth == MaxTraversalDepth {
			continue
		}

		children, err := s.store.ListByParent(ctx, current.id)
		if err != nil {
			s.logger.Warn("lineage child lookup failed, returning partial graph",
				"identity_id", current.id, "error", err)
			continue
		}
		for _, child := range children {
			graph.Edges = append(graph.Edges, Edge{
				FromIdentityID: current.id,
				ToIdentityID:   child.IdentityID,
				Relationship:   child.Relationship,
				CreatedAt:      child.CreatedAt,
			})
			queue = append(queue, level{id: child.IdentityID, depth: current.depth + 1})
		}
	}

	return graph, nil
}

// Ancestors returns the identity's ancestor chain, nearest first. The walk
// stops at the first missing parent, repeated identity, or the depth cap.
func (s *Service) Ancestors(ctx context.Context, identityID string) ([]*Node, error) {
	ancestors := []*Node{}
	visited := map[string]bool{identityID: true}

	current := identityID
	for depth := 0; depth < MaxTraversalDepth; depth++ {
		node, err := s.store.Get(ctx, current)
		if err != nil {
			if errors.Is(err, ErrNodeNotFound) {
				break
			}
			return nil, err
		}
		if node.ParentIdentityID == "" {
			break
		}
		if visited[node.ParentIdentityID] {
			s.logger.Warn("cycle detected in lineage chain, truncating ancestors",
				"identity_id", identityID, "repeated", node.ParentIdentityID)
			break
		}
		visited[node.ParentIdentityID] = true

		parent, err := s.store.Get(ctx, node.ParentIdentityID)
		if err != nil {
			if errors.Is(err, ErrNodeNotFound) {
				// Dangling parent pointer: the parent identity is real but
				// has no recorded lineage. The chain ends here.
				break
			}
			return nil, err
		}
		ancestors = append(ancestors, parent)
		current = node.ParentIdentityID
	}

	return ancestors, nil
}

// Descendants returns every identity derived from the given one, directly
// or transitively. Order is unspecified. A visited set guarantees
// termination under corrupted parent pointers.
func (s *Service) Descendants(ctx context.Context, identityID string) ([]*Node, error) {
	descendants := []*Node{}
	visited := map[string]bool{identityID: true}

	var expand func(id string, depth int) error
	expand = func(id string, depth int) error {
		if depth > MaxTraversalDepth {
			return nil
		}
		children, err := s.store.ListByParent(ctx, id)
		if err != nil {
			return err
		}
		for _, child := range children {
			if visited[child.IdentityID] {
				continue
			}
			visited[child.IdentityID] = true
			descendants = append(descendants, child)
			if err := expand(child.IdentityID, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := expand(identityID, 1); err != nil {
		return nil, err
	}
	return descendants, nil
}

// findRoot climbs parent pointers until a null parent, a cycle, or the depth
// cap, and returns the last identity reached. Corrupted chains report the
// structure as-is rather than failing.
func (s *Service) findRoot(ctx context.Context, identityID string) string {
	visited := map[string]bool{}
	current := identityID

	for depth := 0; depth <= MaxTraversalDepth; depth++ {
		if visited[current] {
			s.logger.Warn("cycle detected while resolving lineage root",
				"identity_id", identityID, "repeated", current)
			return current
		}
		visited[current] = true

		node, err := s.store.Get(ctx, current)
		if err != nil || node.ParentIdentityID == "" {
			return current
		}
		current = node.ParentIdentityID
	}
	return current
}

func (s *Service) appendAudit(ctx context.Context, activity identity.Activity) {
	if s.audit == nil {
		return
	}
	if err := s.audit.AppendActivity(ctx, activity); err != nil {
		s.logger.Warn("audit append failed",
			"identity_id", activity.IdentityID, "type", activity.Type, "error", err)
	}
}
