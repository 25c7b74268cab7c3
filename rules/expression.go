package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// expressionCostLimit bounds the work a single expression condition may do
const expressionCostLimit = 1000000

// ExpressionEvaluator compiles and runs CEL conditions.
// Programs are cached per expression text; compile failures are cached too so a
// broken rule is reported once instead of on every claim.
type ExpressionEvaluator struct {
	env      *cel.Env
	programs map[string]cel.Program
	failures map[string]error
	mu       sync.RWMutex
}

// NewExpressionEvaluator builds the CEL environment used by expression conditions.
//
// Variables:
//
//	value   string               value of the condition's field ("" when absent)
//	present bool                 whether the field was found
//	fields  map(string, string)  first value for every field label
//	claim   map(string, dyn)     claim scalars that are set (amount, dateOfService, ...)
//
// Functions: npi_valid(string) bool, valid_date(string) bool
func NewExpressionEvaluator() (*ExpressionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("value", cel.StringType),
		cel.Variable("present", cel.BoolType),
		cel.Variable("fields", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("claim", cel.MapType(cel.StringType, cel.DynType)),
		cel.Function("npi_valid",
			cel.Overload("npi_valid_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(stringPredicate(ValidNPI)),
			),
		),
		cel.Function("valid_date",
			cel.Overload("valid_date_string", []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(stringPredicate(ValidDate)),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &ExpressionEvaluator{
		env:      env,
		programs: make(map[string]cel.Program),
		failures: make(map[string]error),
	}, nil
}

func stringPredicate(fn func(string) bool) func(ref.Val) ref.Val {
	return func(v ref.Val) ref.Val {
		s, ok := v.Value().(string)
		if !ok {
			return types.False
		}
		return types.Bool(fn(s))
	}
}

// Compile checks an expression and caches its program
func (x *ExpressionEvaluator) Compile(expression string) (cel.Program, error) {
	x.mu.RLock()
	prog, ok := x.programs[expression]
	failure := x.failures[expression]
	x.mu.RUnlock()
	if ok {
		return prog, nil
	}
	if failure != nil {
		return nil, failure
	}

	prog, err := x.compile(expression)

	x.mu.Lock()
	if err != nil {
		x.failures[expression] = err
	} else {
		x.programs[expression] = prog
	}
	x.mu.Unlock()

	return prog, err
}

func (x *ExpressionEvaluator) compile(expression string) (cel.Program, error) {
	ast, issues := x.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := x.env.Program(ast, cel.CostLimit(expressionCostLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

// Eval runs an expression against the activation built from a context.
// Non-boolean results are treated as false.
func (x *ExpressionEvaluator) Eval(expression string, activation map[string]any) (bool, error) {
	prog, err := x.Compile(expression)
	if err != nil {
		return false, err
	}

	out, _, err := prog.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("evaluation error: %w", err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, nil
	}
	return matched, nil
}

// buildActivation exposes the context to CEL
func buildActivation(field string, ec *ExecutionContext) map[string]any {
	f, present := ec.Field(field)

	fields := make(map[string]string, len(ec.Fields))
	for _, ef := range ec.Fields {
		if _, seen := fields[ef.Label]; !seen {
			fields[ef.Label] = ef.Value
		}
	}

	claim := make(map[string]any)
	if ec.ClaimAmount != nil {
		claim["amount"] = *ec.ClaimAmount
	}
	if ec.DateOfService != "" {
		claim["dateOfService"] = ec.DateOfService
	}
	if ec.DocumentType != "" {
		claim["documentType"] = ec.DocumentType
	}
	if q, ok := ec.Metadata.Quality(); ok {
		claim["qualityScore"] = q
	}
	if notes, ok := ec.Metadata.OperativeNotes(); ok {
		claim["hasOperativeNotes"] = notes
	}
	if ec.Metadata.ClaimType != "" {
		claim["claimType"] = ec.Metadata.ClaimType
	}

	return map[string]any{
		"value":   f.Value,
		"present": present,
		"fields":  fields,
		"claim":   claim,
	}
}
