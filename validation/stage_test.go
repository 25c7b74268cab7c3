package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/claims/rules"
)

type fakeExecutor struct {
	results map[rules.Category][]rules.RuleResult
	err     error
	calls   []rules.Category
}

func (f *fakeExecutor) ExecuteByCategory(_ *rules.ExecutionContext, category rules.Category) ([]rules.RuleResult, error) {
	f.calls = append(f.calls, category)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[category], nil
}

func result(category rules.Category, name string, status rules.CheckStatus) rules.RuleResult {
	return rules.RuleResult{
		RuleID:   name,
		RuleName: name,
		Passed:   status == rules.StatusPass,
		Check:    rules.ValidationCheck{Category: category, Name: name, Status: status},
	}
}

func newEngine(t *testing.T) *rules.Engine {
	t.Helper()
	engine, err := rules.NewEngine(rules.NewInMemoryRuleStore(), rules.WithDefaultRules(rules.DefaultThresholds()))
	require.NoError(t, err)
	return engine
}

func TestReduceStatus(t *testing.T) {
	check := func(s rules.CheckStatus) rules.ValidationCheck { return rules.ValidationCheck{Status: s} }

	tests := []struct {
		name   string
		checks []rules.ValidationCheck
		want   rules.CheckStatus
	}{
		{"empty passes", nil, rules.StatusPass},
		{"all pass", []rules.ValidationCheck{check(rules.StatusPass), check(rules.StatusPass)}, rules.StatusPass},
		{"warning over pass", []rules.ValidationCheck{check(rules.StatusPass), check(rules.StatusWarning)}, rules.StatusWarning},
		{"fail over warning", []rules.ValidationCheck{check(rules.StatusWarning), check(rules.StatusFail), check(rules.StatusPass)}, rules.StatusFail},
		{"pending counts as warning", []rules.ValidationCheck{check(rules.StatusPending)}, rules.StatusWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReduceStatus(tt.checks))
		})
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(rules.CategoryCode, nil)

	assert.Equal(t, rules.CategoryCode, s.Category)
	assert.Equal(t, rules.StatusPass, s.OverallStatus)
	assert.NotNil(t, s.Checks)
	assert.Empty(t, s.Checks)
}

func TestPending(t *testing.T) {
	s := Pending(rules.CategoryEligibility, errors.New("boom"))

	assert.True(t, s.Degraded())
	assert.Equal(t, "boom", s.Error)
	assert.Empty(t, s.Checks)
}

func TestRuleStagesQueryTheirCategory(t *testing.T) {
	exec := &fakeExecutor{results: map[rules.Category][]rules.RuleResult{
		rules.CategoryEligibility:  {result(rules.CategoryEligibility, "a", rules.StatusPass)},
		rules.CategoryCode:         {result(rules.CategoryCode, "b", rules.StatusWarning)},
		rules.CategoryBusinessRule: {result(rules.CategoryBusinessRule, "c", rules.StatusFail)},
	}}

	tests := []struct {
		stage  Stage
		status rules.CheckStatus
	}{
		{NewEligibilityStage(exec), rules.StatusPass},
		{NewCodeStage(exec), rules.StatusWarning},
		{NewBusinessRuleStage(exec), rules.StatusFail},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage.Category()), func(t *testing.T) {
			s, err := tt.stage.Run(&rules.ExecutionContext{})
			require.NoError(t, err)
			assert.Equal(t, tt.stage.Category(), s.Category)
			assert.Equal(t, tt.status, s.OverallStatus)
			require.Len(t, s.Checks, 1)
		})
	}

	assert.Equal(t, []rules.Category{rules.CategoryEligibility, rules.CategoryCode, rules.CategoryBusinessRule}, exec.calls)
}

func TestRuleStagePropagatesErrors(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("store unavailable")}

	_, err := NewCodeStage(exec).Run(&rules.ExecutionContext{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")

	_, err = NewCodeStage(nil).Run(&rules.ExecutionContext{})
	assert.Error(t, err)
}

func TestEligibilityStageWithEngine(t *testing.T) {
	engine := newEngine(t)
	stage := NewEligibilityStage(engine)

	with := &rules.ExecutionContext{Fields: []rules.ExtractedField{
		{Label: rules.LabelMemberID, Value: "W123"},
		{Label: rules.LabelPatientName, Value: "Jane Doe"},
	}}
	s, err := stage.Run(with)
	require.NoError(t, err)
	assert.Equal(t, rules.StatusPass, s.OverallStatus)
	assert.Len(t, s.Checks, 2)

	without := &rules.ExecutionContext{Fields: []rules.ExtractedField{
		{Label: rules.LabelPatientName, Value: "Jane Doe"},
	}}
	s, err = stage.Run(without)
	require.NoError(t, err)
	assert.Equal(t, rules.StatusFail, s.OverallStatus)
	assert.True(t, s.HasStatus(rules.StatusFail))
}
