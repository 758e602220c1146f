package morph

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Rule is an operator-defined detection rule expressed in CEL. The
// expression is evaluated against three variables:
//
//	prev    map(string, dyn)  — the previous snapshot
//	next    map(string, dyn)  — the new snapshot
//	changed list(string)      — the changed field names
//
// and must evaluate to a boolean. When it yields true, the detector emits
// an event of the rule's type with the rule's risk score.
//
// Example: flag any credential material change on production identities:
//
//	Rule{
//	    Name:  "prod-credential-change",
//	    Event: EventCredentialChange,
//	    Risk:  0.8,
//	    Expr:  `"credentials" in changed && next["environment"] == "production"`,
//	}
type Rule struct {
	// Name identifies the rule in event metadata and logs.
	Name string `json:"name"`

	// Event is the event type emitted when the rule fires.
	Event EventType `json:"event"`

	// Risk is the risk score (0-1) assigned to emitted events.
	Risk float64 `json:"risk"`

	// Expr is the CEL expression.
	Expr string `json:"expr"`
}

// Validate checks the rule's fields without compiling the expression.
func (r Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if err := r.Event.Validate(); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	if r.Risk < 0 || r.Risk > 1 {
		return fmt.Errorf("rule %s: risk must be in [0, 1], got %v", r.Name, r.Risk)
	}
	if r.Expr == "" {
		return fmt.Errorf("rule %s: expression is required", r.Name)
	}
	return nil
}

// CompiledRule is a Rule with its CEL program ready for evaluation.
type CompiledRule struct {
	rule    Rule
	program cel.Program
}

// Rule returns the source rule definition.
func (c CompiledRule) Rule() Rule {
	return c.rule
}

func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("prev", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("next", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("changed", cel.ListType(cel.StringType)),
	)
}

// CompileRules validates and compiles a rule set. Any invalid field,
// compile error, or non-boolean expression fails the whole set: rules are
// configuration, and bad configuration is rejected up front.
func CompileRules(rules []Rule) ([]CompiledRule, error) {
	if len(rules) == 0 {
		return nil, nil
	}

	env, err := newRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}

	compiled := make([]CompiledRule, 0, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, err
		}

		ast, iss := env.Compile(rule.Expr)
		if iss.Err() != nil {
			return nil, fmt.Errorf("rule %s: compile: %w", rule.Name, iss.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("rule %s: expression must evaluate to bool, got %s", rule.Name, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s: program: %w", rule.Name, err)
		}
		compiled = append(compiled, CompiledRule{rule: rule, program: program})
	}
	return compiled, nil
}

// eval runs the rule against one comparison. Evaluation errors are returned
// to the caller, which skips the rule for that comparison only.
func (c CompiledRule) eval(prev, next map[string]any, changed []string) (bool, error) {
	if prev == nil {
		prev = map[string]any{}
	}
	if next == nil {
		next = map[string]any{}
	}
	out, _, err := c.program.Eval(map[string]any{
		"prev":    prev,
		"next":    next,
		"changed": changed,
	})
	if err != nil {
		return false, err
	}
	fired, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %s: non-boolean result %T", c.rule.Name, out.Value())
	}
	return fired, nil
}
