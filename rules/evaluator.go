package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ErrUnknownOperator is returned when a condition names an operator the evaluator doesn't know
var ErrUnknownOperator = errors.New("unknown operator")

// Evaluator decides single conditions against an execution context.
// It is safe for concurrent use; compiled regexes and CEL programs are cached.
type Evaluator struct {
	expressions *ExpressionEvaluator
	patterns    map[string]*regexp.Regexp
	badPatterns map[string]error
	mu          sync.RWMutex
}

// NewEvaluator creates a condition evaluator with its own CEL environment
func NewEvaluator() (*Evaluator, error) {
	expressions, err := NewExpressionEvaluator()
	if err != nil {
		return nil, err
	}
	return &Evaluator{
		expressions: expressions,
		patterns:    make(map[string]*regexp.Regexp),
		badPatterns: make(map[string]error),
	}, nil
}

// Evaluate reports whether the condition holds. Malformed conditions evaluate false.
func (ev *Evaluator) Evaluate(cond Condition, ec *ExecutionContext) bool {
	ok, _ := ev.evaluate(cond, ec)
	return ok
}

// evaluate is Evaluate plus the reason a condition was treated as false because
// it was malformed, so the executor can log it against the rule
func (ev *Evaluator) evaluate(cond Condition, ec *ExecutionContext) (bool, error) {
	if ec == nil {
		ec = &ExecutionContext{}
	}
	field, present := ec.Field(cond.Field)

	switch cond.Operator {
	case OperatorEquals:
		return present && field.Value == cond.Value.String(), nil

	case OperatorContains:
		if !present {
			return false, nil
		}
		return strings.Contains(strings.ToLower(field.Value), strings.ToLower(cond.Value.String())), nil

	case OperatorGreaterThan, OperatorLessThan:
		if !present {
			return false, nil
		}
		actual, ok := ParseAmount(field.Value)
		if !ok {
			return false, nil
		}
		threshold, ok := cond.Value.Amount()
		if !ok {
			return false, fmt.Errorf("condition on %q needs a numeric value, got %q", cond.Field, cond.Value.String())
		}
		if cond.Operator == OperatorGreaterThan {
			return actual.GreaterThan(threshold), nil
		}
		return actual.LessThan(threshold), nil

	case OperatorInList:
		if !present {
			return false, nil
		}
		for _, item := range cond.Value.List() {
			if field.Value == item {
				return true, nil
			}
		}
		return false, nil

	case OperatorRegex:
		re, err := ev.pattern(cond.Value.String())
		if err != nil {
			return false, err
		}
		return present && re.MatchString(field.Value), nil

	case OperatorIsNotEmpty:
		return present && strings.TrimSpace(field.Value) != "", nil

	case OperatorExpression:
		return ev.expressions.Eval(cond.Value.String(), buildActivation(cond.Field, ec))
	}

	return false, fmt.Errorf("%w: %q", ErrUnknownOperator, cond.Operator)
}

// pattern returns a cached compiled regex, remembering patterns that fail to compile
func (ev *Evaluator) pattern(expr string) (*regexp.Regexp, error) {
	ev.mu.RLock()
	re, ok := ev.patterns[expr]
	bad := ev.badPatterns[expr]
	ev.mu.RUnlock()
	if ok {
		return re, nil
	}
	if bad != nil {
		return nil, bad
	}

	re, err := regexp.Compile(expr)

	ev.mu.Lock()
	defer ev.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("invalid pattern %q: %w", expr, err)
		ev.badPatterns[expr] = err
		return nil, err
	}
	ev.patterns[expr] = re
	return re, nil
}
