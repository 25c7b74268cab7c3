package rules

import "time"

// FieldCategory groups extracted fields by the part of the claim they came from
type FieldCategory string

const (
	FieldCategoryPatient  FieldCategory = "patient"
	FieldCategoryProvider FieldCategory = "provider"
	FieldCategoryClaim    FieldCategory = "claim"
	FieldCategoryCodes    FieldCategory = "codes"
)

// ExtractedField is a labeled value pulled from a claim document by OCR/AI extraction
type ExtractedField struct {
	ID         string        `json:"id"`
	Category   FieldCategory `json:"category"`
	Label      string        `json:"label"`
	Value      string        `json:"value"`
	Confidence float64       `json:"confidence"` // 0-100
	IsEdited   bool          `json:"isEdited"`
}

// Operator identifies how a condition compares a field against its value
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorInList      Operator = "in_list"
	OperatorRegex       Operator = "regex"
	OperatorIsNotEmpty  Operator = "is_not_empty"
	// OperatorExpression evaluates Value as a CEL boolean expression
	OperatorExpression Operator = "expression"
)

// Valid reports whether op is one of the known operators
func (op Operator) Valid() bool {
	switch op {
	case OperatorEquals, OperatorContains, OperatorGreaterThan, OperatorLessThan,
		OperatorInList, OperatorRegex, OperatorIsNotEmpty, OperatorExpression:
		return true
	}
	return false
}

// Condition is a single comparison against one extracted field
type Condition struct {
	Field    string         `json:"field" yaml:"field"`
	Operator Operator       `json:"operator" yaml:"operator"`
	Value    ConditionValue `json:"value" yaml:"value"`
}

// ActionType is the outcome a rule applies
type ActionType string

const (
	ActionPass    ActionType = "pass"
	ActionFail    ActionType = "fail"
	ActionWarning ActionType = "warning"
	ActionFlag    ActionType = "flag"
)

// Valid reports whether t is one of the known action types
func (t ActionType) Valid() bool {
	switch t {
	case ActionPass, ActionFail, ActionWarning, ActionFlag:
		return true
	}
	return false
}

// CheckStatus maps the action onto the status shown for a validation check.
// flag is displayed as a warning.
func (t ActionType) CheckStatus() CheckStatus {
	switch t {
	case ActionPass:
		return StatusPass
	case ActionWarning, ActionFlag:
		return StatusWarning
	default:
		return StatusFail
	}
}

// RuleAction is what happens when a rule's conditions match (or don't)
type RuleAction struct {
	Type    ActionType `json:"type" yaml:"type"`
	Message string     `json:"message,omitempty" yaml:"message,omitempty"`
	// Suggestion is a corrective hint surfaced as an auto-correction
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
}

// Category is the validation stage a rule belongs to
type Category string

const (
	CategoryEligibility  Category = "eligibility"
	CategoryCode         Category = "code"
	CategoryBusinessRule Category = "business_rule"
	CategoryDocument     Category = "document"
)

// Categories lists every category in pipeline order
var Categories = []Category{CategoryEligibility, CategoryCode, CategoryDocument, CategoryBusinessRule}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	switch c {
	case CategoryEligibility, CategoryCode, CategoryBusinessRule, CategoryDocument:
		return true
	}
	return false
}

// ConditionLogic combines a rule's condition results
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "and"
	LogicOr  ConditionLogic = "or"
)

// Valid reports whether l is and/or
func (l ConditionLogic) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

// BusinessRule is a single configurable validation rule.
// Actions[0] applies when the conditions match, Actions[1] (optional) when they don't.
type BusinessRule struct {
	ID             string         `json:"id" yaml:"id"`
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description" yaml:"description"`
	Category       Category       `json:"category" yaml:"category"`
	Conditions     []Condition    `json:"conditions" yaml:"conditions"`
	ConditionLogic ConditionLogic `json:"conditionLogic" yaml:"conditionLogic"`
	Actions        []RuleAction   `json:"actions" yaml:"actions"`
	Priority       int            `json:"priority" yaml:"priority"`
	IsActive       bool           `json:"isActive" yaml:"isActive"`
	CreatedAt      time.Time      `json:"createdAt" yaml:"-"`
	UpdatedAt      time.Time      `json:"updatedAt" yaml:"-"`
}

// Clone returns a deep copy so callers can't mutate store state
func (r *BusinessRule) Clone() *BusinessRule {
	if r == nil {
		return nil
	}
	c := *r
	c.Conditions = cloneConditions(r.Conditions)
	if r.Actions != nil {
		c.Actions = make([]RuleAction, len(r.Actions))
		copy(c.Actions, r.Actions)
	}
	return &c
}

func cloneConditions(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	for i, cond := range conds {
		cond.Value = cond.Value.Clone()
		out[i] = cond
	}
	return out
}

// RulePatch is a partial update; nil fields are left unchanged
type RulePatch struct {
	Name           *string         `json:"name,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Category       *Category       `json:"category,omitempty"`
	Conditions     []Condition     `json:"conditions,omitempty"`
	ConditionLogic *ConditionLogic `json:"conditionLogic,omitempty"`
	Actions        []RuleAction    `json:"actions,omitempty"`
	Priority       *int            `json:"priority,omitempty"`
	IsActive       *bool           `json:"isActive,omitempty"`
}

// Apply returns a copy of r with the patch applied
func (p RulePatch) Apply(r *BusinessRule) *BusinessRule {
	out := r.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Category != nil {
		out.Category = *p.Category
	}
	if p.Conditions != nil {
		out.Conditions = cloneConditions(p.Conditions)
	}
	if p.ConditionLogic != nil {
		out.ConditionLogic = *p.ConditionLogic
	}
	if p.Actions != nil {
		out.Actions = append([]RuleAction(nil), p.Actions...)
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.IsActive != nil {
		out.IsActive = *p.IsActive
	}
	return out
}

// ExecutionContext is everything a rule can see about one claim.
// Built fresh per pipeline run and treated as read-only during evaluation.
type ExecutionContext struct {
	ClaimID       string           `json:"claimId,omitempty"`
	Fields        []ExtractedField `json:"fields"`
	DateOfService string           `json:"dateOfService,omitempty"`
	ClaimAmount   *float64         `json:"claimAmount,omitempty"`
	DocumentType  string           `json:"documentType,omitempty"`
	Metadata      Metadata         `json:"metadata"`
}

// Field returns the first field whose label matches exactly
func (ec *ExecutionContext) Field(label string) (ExtractedField, bool) {
	if ec == nil {
		return ExtractedField{}, false
	}
	for _, f := range ec.Fields {
		if f.Label == label {
			return f, true
		}
	}
	return ExtractedField{}, false
}

// CheckStatus is the displayed status of a validation check
type CheckStatus string

const (
	StatusPass    CheckStatus = "pass"
	StatusWarning CheckStatus = "warning"
	StatusFail    CheckStatus = "fail"
	StatusPending CheckStatus = "pending"
)

// ValidationCheck is the normalized record of one rule's outcome
type ValidationCheck struct {
	Category    Category    `json:"category"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      CheckStatus `json:"status"`
	Details     string      `json:"details,omitempty"`
	Suggestion  string      `json:"suggestion,omitempty"`
}

// RuleResult is the outcome of running one rule against one context
type RuleResult struct {
	RuleID   string          `json:"ruleId"`
	RuleName string          `json:"ruleName"`
	Passed   bool            `json:"passed"`
	Check    ValidationCheck `json:"validationCheck"`
}
