// Package validation adapts the rules engine into the four per-category
// validation stages and reduces their results into stage summaries.
package validation

import (
	"fmt"

	"github.com/liamcoop/claims/rules"
)

// CategoryExecutor runs the active rules of one category. *rules.Engine satisfies it.
type CategoryExecutor interface {
	ExecuteByCategory(ec *rules.ExecutionContext, category rules.Category) ([]rules.RuleResult, error)
}

// StageSummary is the reduced outcome of one validation stage
type StageSummary struct {
	Category      rules.Category          `json:"category"`
	OverallStatus rules.CheckStatus       `json:"overallStatus"`
	Checks        []rules.ValidationCheck `json:"checks"`

	// Document stage only
	RequiredDocuments []string `json:"requiredDocuments,omitempty"`
	ReceivedDocuments []string `json:"receivedDocuments,omitempty"`
	MissingDocuments  []string `json:"missingDocuments,omitempty"`

	// Error is set when the stage was degraded instead of evaluated
	Error string `json:"error,omitempty"`
}

// Degraded reports whether the stage could not be evaluated
func (s StageSummary) Degraded() bool {
	return s.OverallStatus == rules.StatusPending
}

// HasStatus reports whether any check carries status
func (s StageSummary) HasStatus(status rules.CheckStatus) bool {
	for _, c := range s.Checks {
		if c.Status == status {
			return true
		}
	}
	return false
}

// Stage is one validation step of the pipeline
type Stage interface {
	Category() rules.Category
	Run(ec *rules.ExecutionContext) (StageSummary, error)
}

// Summarize builds a summary from checks: fail dominates warning dominates pass.
// An empty check list passes.
func Summarize(category rules.Category, checks []rules.ValidationCheck) StageSummary {
	if checks == nil {
		checks = []rules.ValidationCheck{}
	}
	return StageSummary{
		Category:      category,
		OverallStatus: ReduceStatus(checks),
		Checks:        checks,
	}
}

// ReduceStatus folds check statuses into one. A pending check counts as a warning.
func ReduceStatus(checks []rules.ValidationCheck) rules.CheckStatus {
	status := rules.StatusPass
	for _, c := range checks {
		switch c.Status {
		case rules.StatusFail:
			return rules.StatusFail
		case rules.StatusWarning, rules.StatusPending:
			status = rules.StatusWarning
		}
	}
	return status
}

// Pending is the degraded summary recorded when a stage fails to run
func Pending(category rules.Category, err error) StageSummary {
	s := StageSummary{
		Category:      category,
		OverallStatus: rules.StatusPending,
		Checks:        []rules.ValidationCheck{},
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// ruleStage runs one category of rules and reduces the results
type ruleStage struct {
	category rules.Category
	executor CategoryExecutor
}

// NewEligibilityStage validates member coverage fields
func NewEligibilityStage(executor CategoryExecutor) Stage {
	return &ruleStage{category: rules.CategoryEligibility, executor: executor}
}

// NewCodeStage validates provider and procedure/diagnosis codes
func NewCodeStage(executor CategoryExecutor) Stage {
	return &ruleStage{category: rules.CategoryCode, executor: executor}
}

// NewBusinessRuleStage runs payer business rules
func NewBusinessRuleStage(executor CategoryExecutor) Stage {
	return &ruleStage{category: rules.CategoryBusinessRule, executor: executor}
}

func (s *ruleStage) Category() rules.Category {
	return s.category
}

func (s *ruleStage) Run(ec *rules.ExecutionContext) (StageSummary, error) {
	checks, err := runChecks(s.executor, ec, s.category)
	if err != nil {
		return StageSummary{}, err
	}
	return Summarize(s.category, checks), nil
}

func runChecks(executor CategoryExecutor, ec *rules.ExecutionContext, category rules.Category) ([]rules.ValidationCheck, error) {
	if executor == nil {
		return nil, fmt.Errorf("%s stage has no rules engine", category)
	}
	results, err := executor.ExecuteByCategory(ec, category)
	if err != nil {
		return nil, fmt.Errorf("%s rules: %w", category, err)
	}

	checks := make([]rules.ValidationCheck, 0, len(results))
	for _, r := range results {
		checks = append(checks, r.Check)
	}
	return checks, nil
}
