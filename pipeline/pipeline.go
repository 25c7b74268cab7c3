// Package pipeline runs a claim through the four validation stages and the router.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/claims/internal/logger"
	"github.com/liamcoop/claims/internal/metrics"
	"github.com/liamcoop/claims/routing"
	"github.com/liamcoop/claims/rules"
	"github.com/liamcoop/claims/validation"
)

// ErrNoFields is returned when a claim carries nothing to validate
var ErrNoFields = errors.New("no extracted fields available for validation")

// Status is the outcome of one pipeline run
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Result is everything the pipeline learned about one claim
type Result struct {
	ClaimID         string                  `json:"claimId"`
	Eligibility     validation.StageSummary `json:"eligibility"`
	CodeValidation  validation.StageSummary `json:"codeValidation"`
	DocumentCheck   validation.StageSummary `json:"documentCheck"`
	BusinessRules   validation.StageSummary `json:"businessRules"`
	RoutingDecision *routing.Decision       `json:"routingDecision,omitempty"`
	ConfidenceScore float64                 `json:"confidenceScore"`
	Status          Status                  `json:"status"`
	Error           string                  `json:"error,omitempty"`
	ProcessedAt     time.Time               `json:"processedAt"`
	Duration        time.Duration           `json:"durationNs"`
}

// Summaries returns the stage summaries in pipeline order
func (r *Result) Summaries() []validation.StageSummary {
	return []validation.StageSummary{r.Eligibility, r.CodeValidation, r.DocumentCheck, r.BusinessRules}
}

// Pipeline is safe for concurrent use when its executor is
type Pipeline struct {
	router *routing.Router
	stages []validation.Stage
}

type options struct {
	routing   routing.Config
	documents validation.DocumentConfig
	stages    []validation.Stage
}

// Option configures a Pipeline
type Option func(*options)

// WithRouter sets the routing thresholds
func WithRouter(cfg routing.Config) Option {
	return func(o *options) {
		o.routing = cfg
	}
}

// WithDocumentConfig sets the document requirements
func WithDocumentConfig(cfg validation.DocumentConfig) Option {
	return func(o *options) {
		o.documents = cfg
	}
}

// WithStages replaces the default stages. Stages are matched to result slots by category.
func WithStages(stages ...validation.Stage) Option {
	return func(o *options) {
		o.stages = stages
	}
}

// New creates a pipeline whose stages all run against executor
func New(executor validation.CategoryExecutor, opts ...Option) *Pipeline {
	o := options{
		routing:   routing.DefaultConfig(),
		documents: validation.DefaultDocumentConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	stages := o.stages
	if stages == nil {
		stages = []validation.Stage{
			validation.NewEligibilityStage(executor),
			validation.NewCodeStage(executor),
			validation.NewDocumentStage(executor, o.documents),
			validation.NewBusinessRuleStage(executor),
		}
	}

	return &Pipeline{
		router: routing.NewRouter(o.routing),
		stages: stages,
	}
}

// Process validates and routes one claim. Stage errors degrade that stage to pending;
// only a claim without fields, or a cancelled context, yields StatusError.
// A nil ctx is treated as context.Background().
func (p *Pipeline) Process(ctx context.Context, ec *rules.ExecutionContext) (result Result) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()
	result = Result{
		Eligibility:    validation.Pending(rules.CategoryEligibility, nil),
		CodeValidation: validation.Pending(rules.CategoryCode, nil),
		DocumentCheck:  validation.Pending(rules.CategoryDocument, nil),
		BusinessRules:  validation.Pending(rules.CategoryBusinessRule, nil),
		Status:         StatusOK,
		ProcessedAt:    start.UTC(),
	}
	if ec != nil {
		result.ClaimID = ec.ClaimID
	}
	if result.ClaimID == "" {
		result.ClaimID = uuid.NewString()
	}

	defer func() {
		result.Duration = time.Since(start)
		metrics.RecordClaimProcessed(string(result.Status), result.Duration)
	}()

	if ec == nil || len(ec.Fields) == 0 {
		result.Status = StatusError
		result.Error = ErrNoFields.Error()
		logger.Warn("claim rejected", "claim_id", result.ClaimID, "error", ErrNoFields)
		return result
	}

	for _, stage := range p.stages {
		var summary validation.StageSummary
		if err := ctx.Err(); err != nil {
			summary = validation.Pending(stage.Category(), err)
			result.Status = StatusError
			result.Error = err.Error()
		} else {
			summary = p.runStage(result.ClaimID, stage, ec)
		}
		result.setSummary(summary)
	}

	result.ConfidenceScore = Confidence(result.Summaries()...)
	for _, s := range result.Summaries() {
		for _, c := range s.Checks {
			metrics.RecordRuleCheck(string(c.Category), string(c.Status))
		}
	}

	if result.Status == StatusError {
		logger.Warn("claim processing cancelled", "claim_id", result.ClaimID, "error", result.Error)
		return result
	}

	decision := p.router.Decide(result.Eligibility, result.CodeValidation, result.DocumentCheck, result.BusinessRules, result.ConfidenceScore)
	result.RoutingDecision = &decision
	metrics.RecordRoutingDecision(string(decision.Queue), string(decision.Priority))

	logger.Info("claim processed",
		"claim_id", result.ClaimID,
		"queue", decision.Queue,
		"priority", decision.Priority,
		"confidence", result.ConfidenceScore,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result
}

// runStage evaluates one stage, turning errors and panics into a pending summary.
// The document stage keeps its document sets when degraded.
func (p *Pipeline) runStage(claimID string, stage validation.Stage, ec *rules.ExecutionContext) (summary validation.StageSummary) {
	category := stage.Category()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.StageFailure(claimID, string(category), err)
			metrics.RecordStageFailure(string(category))
			summary = validation.Pending(category, err)
		}
	}()

	s, err := stage.Run(ec)
	if err != nil {
		logger.StageFailure(claimID, string(category), err)
		metrics.RecordStageFailure(string(category))
		degraded := validation.Pending(category, err)
		degraded.RequiredDocuments = s.RequiredDocuments
		degraded.ReceivedDocuments = s.ReceivedDocuments
		degraded.MissingDocuments = s.MissingDocuments
		return degraded
	}
	if s.Category == "" {
		s.Category = category
	}
	return s
}

func (r *Result) setSummary(s validation.StageSummary) {
	switch s.Category {
	case rules.CategoryEligibility:
		r.Eligibility = s
	case rules.CategoryCode:
		r.CodeValidation = s
	case rules.CategoryDocument:
		r.DocumentCheck = s
	case rules.CategoryBusinessRule:
		r.BusinessRules = s
	}
}

// Confidence is the share of passed checks across summaries, 0-100. No checks scores 0.
func Confidence(summaries ...validation.StageSummary) float64 {
	var passed, total int
	for _, s := range summaries {
		for _, c := range s.Checks {
			total++
			if c.Status == rules.StatusPass {
				passed++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}
