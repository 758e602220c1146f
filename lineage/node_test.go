package lineage

import "testing"

func TestRelationship_IsValid(t *testing.T) {
	tests := []struct {
		name         string
		relationship Relationship
		want         bool
	}{
		{"created_from is valid", RelationshipCreatedFrom, true},
		{"cloned_from is valid", RelationshipClonedFrom, true},
		{"rotated_from is valid", RelationshipRotatedFrom, true},
		{"delegated_from is valid", RelationshipDelegatedFrom, true},
		{"inherited_from is valid", RelationshipInheritedFrom, true},
		{"split_from is valid", RelationshipSplitFrom, true},
		{"merged_from is valid", RelationshipMergedFrom, true},
		{"empty is invalid", Relationship(""), false},
		{"unknown is invalid", Relationship("forked_from"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.relationship.IsValid(); got != tt.want {
				t.Errorf("Relationship.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRelationship(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Relationship
		wantErr bool
	}{
		{"parse created_from", "created_from", RelationshipCreatedFrom, false},
		{"parse rotated_from", "rotated_from", RelationshipRotatedFrom, false},
		{"parse invalid", "spawned_from", "", true},
		{"parse empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRelationship(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRelationship(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRelationship(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestAllRelationships(t *testing.T) {
	all := AllRelationships()
	if len(all) != 7 {
		t.Fatalf("AllRelationships() returned %d values, want 7", len(all))
	}
	for _, r := range all {
		if !r.IsValid() {
			t.Errorf("AllRelationships() contains invalid value %q", r)
		}
	}
}

func TestNewNode(t *testing.T) {
	node := NewNode("id-1", RelationshipCreatedFrom).
		WithParent("parent-1").
		WithCreatedBy("provisioner").
		WithPurpose("ci deploy key").
		WithMetadata(map[string]any{"env": "prod"})

	if node.ID == "" {
		t.Error("NewNode() did not generate an ID")
	}
	if node.CreatedAt.IsZero() {
		t.Error("NewNode() did not set CreatedAt")
	}
	if node.IdentityID != "id-1" {
		t.Errorf("IdentityID = %q, want %q", node.IdentityID, "id-1")
	}
	if node.ParentIdentityID != "parent-1" {
		t.Errorf("ParentIdentityID = %q, want %q", node.ParentIdentityID, "parent-1")
	}
	if node.IsRoot() {
		t.Error("node with parent reported as root")
	}
	if err := node.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestNode_Validate(t *testing.T) {
	tests := []struct {
		name    string
		node    *Node
		wantErr bool
	}{
		{
			name:    "valid root node",
			node:    NewNode("id-1", RelationshipCreatedFrom),
			wantErr: false,
		},
		{
			name:    "missing identity",
			node:    &Node{Relationship: RelationshipCreatedFrom},
			wantErr: true,
		},
		{
			name:    "invalid relationship",
			node:    &Node{IdentityID: "id-1", Relationship: "bogus"},
			wantErr: true,
		},
		{
			name:    "self parent",
			node:    NewNode("id-1", RelationshipClonedFrom).WithParent("id-1"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.node.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
