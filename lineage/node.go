package lineage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Relationship describes how an identity was derived from its parent.
type Relationship string

const (
	// RelationshipCreatedFrom indicates the identity was provisioned by
	// another identity (e.g., a service account creating an API key).
	RelationshipCreatedFrom Relationship = "created_from"

	// RelationshipClonedFrom indicates the identity is a copy of another
	// identity's configuration and permissions.
	RelationshipClonedFrom Relationship = "cloned_from"

	// RelationshipRotatedFrom indicates the identity replaced another as
	// part of a credential rotation.
	RelationshipRotatedFrom Relationship = "rotated_from"

	// RelationshipDelegatedFrom indicates the identity acts on behalf of
	// another identity with delegated authority.
	RelationshipDelegatedFrom Relationship = "delegated_from"

	// RelationshipInheritedFrom indicates the identity inherited its
	// permissions from another identity.
	RelationshipInheritedFrom Relationship = "inherited_from"

	// RelationshipSplitFrom indicates the identity carries a subset of
	// another identity's responsibilities.
	RelationshipSplitFrom Relationship = "split_from"

	// RelationshipMergedFrom indicates the identity consolidates one or
	// more prior identities.
	RelationshipMergedFrom Relationship = "merged_from"
)

// String returns the string representation of the relationship.
func (r Relationship) String() string {
	return string(r)
}

// IsValid returns true if the relationship is one of the defined values.
func (r Relationship) IsValid() bool {
	switch r {
	case RelationshipCreatedFrom, RelationshipClonedFrom, RelationshipRotatedFrom,
		RelationshipDelegatedFrom, RelationshipInheritedFrom, RelationshipSplitFrom,
		RelationshipMergedFrom:
		return true
	default:
		return false
	}
}

// Validate checks that the relationship is valid.
func (r Relationship) Validate() error {
	if !r.IsValid() {
		return fmt.Errorf("invalid relationship: %q", string(r))
	}
	return nil
}

// ParseRelationship parses a string into a Relationship value.
// Returns an error if the string is not a defined relationship.
func ParseRelationship(s string) (Relationship, error) {
	r := Relationship(s)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// AllRelationships returns every defined relationship value.
func AllRelationships() []Relationship {
	return []Relationship{
		RelationshipCreatedFrom,
		RelationshipClonedFrom,
		RelationshipRotatedFrom,
		RelationshipDelegatedFrom,
		RelationshipInheritedFrom,
		RelationshipSplitFrom,
		RelationshipMergedFrom,
	}
}

// Node is one recorded provenance fact: this identity was derived from that
// identity via the given relationship. Nodes are immutable once recorded.
type Node struct {
	// ID is the unique node identifier, generated at creation.
	ID string `json:"id"`

	// IdentityID is the identity this node describes. Exactly one node
	// exists per identity.
	IdentityID string `json:"identity_id"`

	// ParentIdentityID is the identity this one was derived from.
	// Empty means the identity is a lineage root.
	ParentIdentityID string `json:"parent_identity_id,omitempty"`

	// Relationship describes how the identity was derived from its parent.
	Relationship Relationship `json:"relationship"`

	// CreatedAt is when the provenance fact was recorded.
	CreatedAt time.Time `json:"created_at"`

	// CreatedBy identifies the actor that provisioned the identity.
	CreatedBy string `json:"created_by,omitempty"`

	// Purpose is a free-text justification for the derivation.
	Purpose string `json:"purpose,omitempty"`

	// Metadata carries open key/value context.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewNode creates a Node for the given identity and relationship with a
// generated ID and the current timestamp.
func NewNode(identityID string, relationship Relationship) *Node {
	return &Node{
		ID:           uuid.New().String(),
		IdentityID:   identityID,
		Relationship: relationship,
		CreatedAt:    time.Now(),
	}
}

// WithParent sets the parent identity and returns the node for chaining.
func (n *Node) WithParent(parentIdentityID string) *Node {
	n.ParentIdentityID = parentIdentityID
	return n
}

// WithCreatedBy sets the creating actor and returns the node for chaining.
func (n *Node) WithCreatedBy(createdBy string) *Node {
	n.CreatedBy = createdBy
	return n
}

// WithPurpose sets the justification and returns the node for chaining.
func (n *Node) WithPurpose(purpose string) *Node {
	n.Purpose = purpose
	return n
}

// WithMetadata sets the metadata map and returns the node for chaining.
func (n *Node) WithMetadata(metadata map[string]any) *Node {
	n.Metadata = metadata
	return n
}

// IsRoot returns true if the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentIdentityID == ""
}

// Validate checks that the node has all required fields set correctly.
func (n *Node) Validate() error {
	if n.IdentityID == "" {
		return errors.New("node identity ID is required")
	}
	if err := n.Relationship.Validate(); err != nil {
		return err
	}
	if n.ParentIdentityID == n.IdentityID && n.IdentityID != "" {
		return fmt.Errorf("identity %s cannot be its own parent", n.IdentityID)
	}
	return nil
}
