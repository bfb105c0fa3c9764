package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"fanout/pkg/models"
)

// Input is the activation a rule is evaluated against.
type Input struct {
	Payload    map[string]interface{}
	Attributes map[string]string
	MessageID  string
	TopicID    string
}

type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("message_id", cel.StringType),
		cel.Variable("topic", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	_, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	return nil
}

// Rule is a compiled boolean predicate.
type Rule struct {
	Name       string
	Expression string
	program    cel.Program
}

// CompileRule type-checks expression and requires it to return bool.
func (e *Evaluator) CompileRule(name, expression string) (*Rule, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %q: %w", name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %q must return bool, got %v", name, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program for rule %q: %w", name, err)
	}

	return &Rule{Name: name, Expression: expression, program: program}, nil
}

// Evaluate runs the rule. Payload numbers are doubles inside the rule.
// Evaluation errors (for example a missing map key)
// are returned to the caller, which decides whether they count as a rejection.
func (r *Rule) Evaluate(ctx context.Context, in Input) (bool, error) {
	payload := map[string]interface{}{}
	if in.Payload != nil {
		payload = models.MapNumbers(in.Payload, models.NumberToFloat).(map[string]interface{})
	}
	attributes := in.Attributes
	if attributes == nil {
		attributes = map[string]string{}
	}

	vars := map[string]interface{}{
		"payload":    payload,
		"attributes": attributes,
		"message_id": in.MessageID,
		"topic":      in.TopicID,
	}

	result, _, err := r.program.ContextEval(ctx, vars)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rule %q: %w", r.Name, err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not return bool, got %T", r.Name, result.Value())
	}

	return boolVal, nil
}
