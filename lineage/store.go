package lineage

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Common errors returned by lineage stores.
var (
	// ErrNodeNotFound is returned when no lineage node exists for an identity.
	ErrNodeNotFound = errors.New("lineage: node not found")

	// ErrNodeExists is returned when a lineage node has already been
	// recorded for an identity. An identity's origin is fixed for its
	// lifetime, so a second record is always a conflict.
	ErrNodeExists = errors.New("lineage: node already exists for identity")

	// ErrStorageFailed is returned when the backing store fails.
	ErrStorageFailed = errors.New("lineage: storage operation failed")
)

// Store persists lineage nodes. Implementations must be safe for concurrent
// use and must enforce the at-most-one-node-per-identity invariant
// atomically: two concurrent Puts for the same identity must not both
// succeed.
type Store interface {
	// Get returns the node recorded for the identity.
	// Returns ErrNodeNotFound if no node exists.
	Get(ctx context.Context, identityID string) (*Node, error)

	// Put records a node. Returns ErrNodeExists if a node has already been
	// recorded for the node's identity.
	Put(ctx context.Context, node *Node) error

	// ListByParent returns all nodes whose parent is the given identity.
	ListByParent(ctx context.Context, parentIdentityID string) ([]*Node, error)
}

// MemoryStore is the default in-process Store. It keeps nodes in a map with
// a children index under a single RWMutex; the lock is held only for map
// access, so contention stays low even under concurrent request handlers.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	children map[string][]string
}

// NewMemoryStore creates an empty in-memory lineage store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
	}
}

// Get returns the node recorded for the identity.
func (s *MemoryStore) Get(ctx context.Context, identityID string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[identityID]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return cloneNode(node), nil
}

// Put records a node, enforcing the single-node-per-identity invariant.
func (s *MemoryStore) Put(ctx context.Context, node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[node.IdentityID]; ok {
		return ErrNodeExists
	}
	s.nodes[node.IdentityID] = cloneNode(node)
	if node.ParentIdentityID != "" {
		s.children[node.ParentIdentityID] = append(s.children[node.ParentIdentityID], node.IdentityID)
	}
	return nil
}

// ListByParent returns all nodes derived from the given identity, ordered by
// identity ID for deterministic results.
func (s *MemoryStore) ListByParent(ctx context.Context, parentIdentityID string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.children[parentIdentityID]
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			nodes = append(nodes, cloneNode(node))
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].IdentityID < nodes[j].IdentityID })
	return nodes, nil
}

// cloneNode copies a node including its metadata map, so the store and its
// callers never alias mutable state. A recorded provenance fact must stay
// exactly as written.
func cloneNode(node *Node) *Node {
	copied := *node
	if node.Metadata != nil {
		copied.Metadata = make(map[string]any, len(node.Metadata))
		for k, v := range node.Metadata {
			copied.Metadata[k] = v
		}
	}
	return &copied
}

// Len returns the number of recorded nodes.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}
