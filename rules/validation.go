package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidRule wraps every structural problem ValidateRule reports
var ErrInvalidRule = errors.New("invalid rule")

const (
	maxRuleIDLength  = 100
	maxConditions    = 50
	maxRuleActions   = 2
	maxRuleNameBytes = 200
)

var ruleIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateRule checks a rule definition before it enters the store.
// Bad regex patterns and CEL expressions are not rejected here; they're recovered
// at evaluation time so one broken rule can't block a catalog load.
func ValidateRule(rule *BusinessRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule is nil", ErrInvalidRule)
	}

	if err := ValidateRuleID(rule.ID); err != nil {
		return err
	}

	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: rule %s must have a name", ErrInvalidRule, rule.ID)
	}
	if len(rule.Name) > maxRuleNameBytes {
		return fmt.Errorf("%w: rule %s name exceeds %d characters", ErrInvalidRule, rule.ID, maxRuleNameBytes)
	}

	if !rule.Category.Valid() {
		return fmt.Errorf("%w: rule %s has unknown category %q", ErrInvalidRule, rule.ID, rule.Category)
	}

	if !rule.ConditionLogic.Valid() {
		return fmt.Errorf("%w: rule %s has unknown condition logic %q (must be and/or)", ErrInvalidRule, rule.ID, rule.ConditionLogic)
	}

	if len(rule.Conditions) > maxConditions {
		return fmt.Errorf("%w: rule %s has %d conditions, maximum allowed is %d", ErrInvalidRule, rule.ID, len(rule.Conditions), maxConditions)
	}
	for i, cond := range rule.Conditions {
		if !cond.Operator.Valid() {
			return fmt.Errorf("%w: rule %s condition %d has unknown operator %q", ErrInvalidRule, rule.ID, i, cond.Operator)
		}
		if cond.Field == "" && cond.Operator != OperatorExpression {
			return fmt.Errorf("%w: rule %s condition %d must name a field", ErrInvalidRule, rule.ID, i)
		}
		if cond.Value.Kind() == ValueNumber && !cond.Value.finite() {
			return fmt.Errorf("%w: rule %s condition %d value must be a finite number", ErrInvalidRule, rule.ID, i)
		}
	}

	if len(rule.Actions) == 0 {
		return fmt.Errorf("%w: rule %s must have at least one action", ErrInvalidRule, rule.ID)
	}
	if len(rule.Actions) > maxRuleActions {
		return fmt.Errorf("%w: rule %s has %d actions, maximum allowed is %d (match, no-match)", ErrInvalidRule, rule.ID, len(rule.Actions), maxRuleActions)
	}
	for i, action := range rule.Actions {
		if !action.Type.Valid() {
			return fmt.Errorf("%w: rule %s action %d has unknown type %q", ErrInvalidRule, rule.ID, i, action.Type)
		}
	}

	return nil
}

// ValidateRuleID checks the identifier format shared by rules and payers
func ValidateRuleID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: identifier cannot be empty", ErrInvalidRule)
	}
	if len(id) > maxRuleIDLength {
		return fmt.Errorf("%w: identifier length %d exceeds maximum of %d characters", ErrInvalidRule, len(id), maxRuleIDLength)
	}
	if !ruleIDPattern.MatchString(id) {
		return fmt.Errorf("%w: identifier %q must contain only letters, digits, '.', '_' or '-'", ErrInvalidRule, id)
	}
	return nil
}

// normalizeRule fills defaults a caller may leave out
func normalizeRule(rule *BusinessRule) {
	if rule.ConditionLogic == "" {
		rule.ConditionLogic = LogicAnd
	}
}
