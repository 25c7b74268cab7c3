package rules

import (
	"fmt"

	"github.com/liamcoop/claims/internal/logger"
)

// Executor runs one rule's conditions under its logic and applies the outcome action
type Executor struct {
	evaluator *Evaluator
}

// NewExecutor wraps an evaluator
func NewExecutor(evaluator *Evaluator) *Executor {
	return &Executor{evaluator: evaluator}
}

// Run evaluates an active rule and produces its normalized result.
// Conditions are checked in list order and short-circuit; an empty list matches.
func (x *Executor) Run(rule *BusinessRule, ec *ExecutionContext) RuleResult {
	matched := x.matches(rule, ec)

	var action RuleAction
	switch {
	case matched && len(rule.Actions) > 0:
		action = rule.Actions[0]
	case !matched && len(rule.Actions) > 1:
		action = rule.Actions[1]
	default:
		// no applicable action: the rule fails
		action = RuleAction{Type: ActionFail}
	}

	status := action.Type.CheckStatus()
	details := action.Message
	if details == "" && status != StatusPass {
		details = fmt.Sprintf("%s did not pass", rule.Name)
	}

	return RuleResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Passed:   action.Type == ActionPass,
		Check: ValidationCheck{
			Category:    rule.Category,
			Name:        rule.Name,
			Description: rule.Description,
			Status:      status,
			Details:     details,
			Suggestion:  action.Suggestion,
		},
	}
}

func (x *Executor) matches(rule *BusinessRule, ec *ExecutionContext) bool {
	if len(rule.Conditions) == 0 {
		return true
	}

	for _, cond := range rule.Conditions {
		ok, err := x.evaluator.evaluate(cond, ec)
		if err != nil {
			logger.RuleError(rule.ID, string(cond.Operator), err)
		}

		if rule.ConditionLogic == LogicOr {
			if ok {
				return true
			}
		} else if !ok {
			return false
		}
	}

	return rule.ConditionLogic != LogicOr
}
