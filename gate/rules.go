package gate

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/lorekeep-ai/sdk/constraint"
	"github.com/lorekeep-ai/sdk/parser"
)

// Rule is a caller-supplied validation check run as the gate's fifth stage.
// Rules see the full parsed output and return zero or more failures; a rule
// error is itself recorded as a Hard failure rather than aborting the run.
type Rule interface {
	// Name identifies the rule in failure reports.
	Name() string

	// Check inspects the output and returns any failures it finds.
	Check(ctx context.Context, out *parser.ParsedOutput) ([]Failure, error)
}

// RuleFunc adapts a named function to the Rule interface.
type RuleFunc struct {
	// RuleName identifies the rule in failure reports.
	RuleName string

	// Fn is the check to run.
	Fn func(ctx context.Context, out *parser.ParsedOutput) ([]Failure, error)
}

// Name returns the rule name.
func (r RuleFunc) Name() string { return r.RuleName }

// Check calls Fn.
func (r RuleFunc) Check(ctx context.Context, out *parser.ParsedOutput) ([]Failure, error) {
	return r.Fn(ctx, out)
}

// CELRule evaluates a CEL expression against the parsed output. The
// expression must yield a bool; false produces one failure with the rule's
// configured severity. The environment exposes:
//
//	dialogue        string            the normalized dialogue text
//	mutation_count  int               number of proposed mutations
//	metadata        map(string,string) parse metadata
//
// Example expression:
//
//	size(dialogue) > 0 && mutation_count <= 3
type CELRule struct {
	name     string
	severity constraint.Severity
	program  cel.Program
}

// NewCELRule compiles the expression and returns the rule. Severity
// defaults to Hard when empty.
func NewCELRule(name, expression string, severity constraint.Severity) (*CELRule, error) {
	if name == "" {
		return nil, fmt.Errorf("gate: cel rule needs a name")
	}
	if severity == "" {
		severity = constraint.Hard
	}

	env, err := cel.NewEnv(
		cel.Variable("dialogue", cel.StringType),
		cel.Variable("mutation_count", cel.IntType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("gate: cel environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("gate: compile cel rule %q: %w", name, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("gate: cel rule %q must evaluate to bool, got %s", name, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("gate: build cel program %q: %w", name, err)
	}

	return &CELRule{name: name, severity: severity, program: program}, nil
}

// Name returns the rule name.
func (r *CELRule) Name() string { return r.name }

// Check evaluates the expression against the output.
func (r *CELRule) Check(_ context.Context, out *parser.ParsedOutput) ([]Failure, error) {
	metadata := out.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	val, _, err := r.program.Eval(map[string]any{
		"dialogue":       out.Dialogue,
		"mutation_count": len(out.Mutations),
		"metadata":       metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", r.name, err)
	}

	ok, isBool := val.Value().(bool)
	if !isBool {
		return nil, fmt.Errorf("rule %q returned non-bool %T", r.name, val.Value())
	}
	if ok {
		return nil, nil
	}
	return []Failure{{
		Stage:        StageCustom,
		ConstraintID: r.name,
		Severity:     r.severity,
		Reason:       fmt.Sprintf("custom rule %q not satisfied", r.name),
	}}, nil
}
