package tag

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// PolicyInput is the data a policy rule sees for one tag.
type PolicyInput struct {
	EntityType string
	EntityID   string
	Context    string
	TagKind    string
	TagName    string
	TagSlug    string
	TagUsage   int64
	UserID     int64
}

func (in PolicyInput) vars() map[string]any {
	return map[string]any{
		"entity_type": in.EntityType,
		"entity_id":   in.EntityID,
		"context":     in.Context,
		"tag_type":    in.TagKind,
		"tag_name":    in.TagName,
		"tag_slug":    in.TagSlug,
		"tag_usage":   in.TagUsage,
		"user_id":     in.UserID,
	}
}

// PolicyDecision is the outcome of evaluating the policy for a tag.
type PolicyDecision struct {
	Allowed          bool
	RequiresApproval bool
}

// Policy decides whether a tag may be attached to content.
// Rules are CEL boolean expressions; an empty rule never matches.
type Policy struct {
	deny     cel.Program
	approval cel.Program
}

func newPolicyEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("entity_type", cel.StringType),
		cel.Variable("entity_id", cel.StringType),
		cel.Variable("context", cel.StringType),
		cel.Variable("tag_type", cel.StringType),
		cel.Variable("tag_name", cel.StringType),
		cel.Variable("tag_slug", cel.StringType),
		cel.Variable("tag_usage", cel.IntType),
		cel.Variable("user_id", cel.IntType),
	)
}

// NewPolicy compiles the deny and approval rules.
func NewPolicy(denyRule, approvalRule string) (*Policy, error) {
	env, err := newPolicyEnv()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create policy environment")
	}
	p := &Policy{}
	if p.deny, err = compileRule(env, denyRule); err != nil {
		return nil, errors.Wrap(err, "invalid deny rule")
	}
	if p.approval, err = compileRule(env, approvalRule); err != nil {
		return nil, errors.Wrap(err, "invalid approval rule")
	}
	return p, nil
}

func compileRule(env *cel.Env, rule string) (cel.Program, error) {
	if rule == "" {
		return nil, nil
	}
	ast, issues := env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("rule %q must evaluate to bool, got %s", rule, ast.OutputType())
	}
	return env.Program(ast)
}

// Evaluate applies the rules to in. The deny rule wins over the approval rule.
func (p *Policy) Evaluate(in PolicyInput) (PolicyDecision, error) {
	vars := in.vars()
	denied, err := evalRule(p.deny, vars)
	if err != nil {
		return PolicyDecision{}, errors.Wrap(err, "failed to evaluate deny rule")
	}
	if denied {
		return PolicyDecision{Allowed: false}, nil
	}
	needsApproval, err := evalRule(p.approval, vars)
	if err != nil {
		return PolicyDecision{}, errors.Wrap(err, "failed to evaluate approval rule")
	}
	return PolicyDecision{Allowed: true, RequiresApproval: needsApproval}, nil
}

func evalRule(prg cel.Program, vars map[string]any) (bool, error) {
	if prg == nil {
		return false, nil
	}
	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("rule returned %T", out.Value())
	}
	return matched, nil
}
