package morph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhiguard/engine/identity"
)

func TestRuleValidate(t *testing.T) {
	valid := Rule{
		Name:  "cred-change",
		Event: EventCredentialChange,
		Risk:  0.8,
		Expr:  `"credentials" in changed`,
	}

	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr string
	}{
		{name: "valid", mutate: func(r *Rule) {}},
		{name: "missing name", mutate: func(r *Rule) { r.Name = "" }, wantErr: "name is required"},
		{name: "bad event type", mutate: func(r *Rule) { r.Event = "explosion" }, wantErr: "invalid event type"},
		{name: "risk too high", mutate: func(r *Rule) { r.Risk = 1.5 }, wantErr: "risk must be in [0, 1]"},
		{name: "risk negative", mutate: func(r *Rule) { r.Risk = -0.1 }, wantErr: "risk must be in [0, 1]"},
		{name: "missing expression", mutate: func(r *Rule) { r.Expr = "" }, wantErr: "expression is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := valid
			tt.mutate(&rule)
			err := rule.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestCompileRules(t *testing.T) {
	t.Run("empty set", func(t *testing.T) {
		compiled, err := CompileRules(nil)
		require.NoError(t, err)
		assert.Nil(t, compiled)
	})

	t.Run("valid set", func(t *testing.T) {
		compiled, err := CompileRules([]Rule{
			{Name: "a", Event: EventCredentialChange, Risk: 0.8, Expr: `"credentials" in changed`},
			{Name: "b", Event: EventBehavioralDrift, Risk: 0.4, Expr: `size(changed) > 3`},
		})
		require.NoError(t, err)
		require.Len(t, compiled, 2)
		assert.Equal(t, "a", compiled[0].Rule().Name)
	})

	t.Run("syntax error fails the whole set", func(t *testing.T) {
		_, err := CompileRules([]Rule{
			{Name: "good", Event: EventCredentialChange, Risk: 0.8, Expr: `"credentials" in changed`},
			{Name: "broken", Event: EventCredentialChange, Risk: 0.8, Expr: `changed in in`},
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "broken")
	})

	t.Run("non-boolean expression rejected", func(t *testing.T) {
		_, err := CompileRules([]Rule{
			{Name: "counts", Event: EventBehavioralDrift, Risk: 0.4, Expr: `size(changed)`},
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, "must evaluate to bool")
	})

	t.Run("invalid field rejected before compile", func(t *testing.T) {
		_, err := CompileRules([]Rule{
			{Name: "", Event: EventCredentialChange, Risk: 0.8, Expr: `true`},
		})
		assert.ErrorContains(t, err, "name is required")
	})
}

func TestDetect_CustomRuleFires(t *testing.T) {
	compiled, err := CompileRules([]Rule{
		{
			Name:  "prod-credential-change",
			Event: EventCredentialChange,
			Risk:  0.85,
			Expr:  `"credentials" in changed && next["environment"] == "production"`,
		},
	})
	require.NoError(t, err)

	d := NewDetector(nil, nil, WithRules(compiled))

	events, err := d.Detect(context.Background(), "id-1",
		identity.Snapshot{"credentials": "v1", "environment": "production"},
		identity.Snapshot{"credentials": "v2", "environment": "production"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, EventCredentialChange, ev.Type)
	assert.Equal(t, 0.85, ev.RiskScore)
	assert.Equal(t, "prod-credential-change", ev.Metadata["rule"])
	assert.Equal(t, []string{"credentials"}, ev.ChangedFields)
}

func TestDetect_CustomRuleNotFiring(t *testing.T) {
	compiled, err := CompileRules([]Rule{
		{
			Name:  "prod-credential-change",
			Event: EventCredentialChange,
			Risk:  0.85,
			Expr:  `"credentials" in changed && next["environment"] == "production"`,
		},
	})
	require.NoError(t, err)

	d := NewDetector(nil, nil, WithRules(compiled))

	// Staging credential rotation stays quiet.
	events, err := d.Detect(context.Background(), "id-1",
		identity.Snapshot{"credentials": "v1", "environment": "staging"},
		identity.Snapshot{"credentials": "v2", "environment": "staging"})
	require.NoError(t, err)
	assert.Empty(t, events)
}

// A rule that errors at evaluation time is skipped for that comparison;
// built-in rules still fire.
func TestDetect_CustomRuleEvalErrorSkipped(t *testing.T) {
	compiled, err := CompileRules([]Rule{
		{
			Name:  "needs-missing-key",
			Event: EventBehavioralDrift,
			Risk:  0.4,
			Expr:  `next["nonexistent_key"] == "y"`,
		},
	})
	require.NoError(t, err)

	d := NewDetector(nil, nil, WithRules(compiled))

	events, err := d.Detect(context.Background(), "id-1",
		identity.Snapshot{"owner": "alice"},
		identity.Snapshot{"owner": "bob"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventOwnerChange, events[0].Type)
}
