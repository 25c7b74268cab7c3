// Package routing maps stage summaries and a confidence score onto a destination queue.
package routing

import (
	"fmt"
	"strings"

	"github.com/liamcoop/claims/rules"
	"github.com/liamcoop/claims/validation"
)

// Queue is where a claim lands after validation
type Queue string

const (
	QueueCleanSubmission Queue = "clean_submission"
	QueueException       Queue = "exception_queue"
	QueueHumanReview     Queue = "human_review"
)

// Action is what the receiving queue should do with the claim
type Action string

const (
	ActionRequestMissingDocuments Action = "request_missing_documents"
	ActionManualCorrection        Action = "manual_correction_required"
	ActionReviewRecommended       Action = "review_recommended"
	ActionAutoSubmit              Action = "auto_submit"
)

// Priority orders work within a queue
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityNormal Priority = "normal"
)

// Rank orders priorities; higher is more pressing
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	}
	return 0
}

// ResolutionTime is the coarse turnaround estimate for a priority
func (p Priority) ResolutionTime() string {
	switch p {
	case PriorityUrgent:
		return "same day"
	case PriorityHigh:
		return "1-2 business days"
	case PriorityMedium:
		return "3-5 business days"
	}
	return ""
}

// Issue is one failed, warned or unevaluated check a reviewer must clear
type Issue struct {
	Category rules.Category    `json:"category"`
	Check    string            `json:"check"`
	Severity rules.CheckStatus `json:"severity"`
	Message  string            `json:"message"`
}

// AutoCorrection is a corrective hint carried by a failed or warned check
type AutoCorrection struct {
	Category   rules.Category `json:"category"`
	Check      string         `json:"check"`
	Suggestion string         `json:"suggestion"`
}

// Decision is the final disposition of a claim
type Decision struct {
	Queue                   Queue            `json:"queue"`
	Action                  Action           `json:"action"`
	Priority                Priority         `json:"priority"`
	Reason                  string           `json:"reason"`
	ConfidenceScore         float64          `json:"confidenceScore"`
	IssuesToResolve         []Issue          `json:"issuesToResolve"`
	AutoCorrections         []AutoCorrection `json:"autoCorrections"`
	EstimatedResolutionTime string           `json:"estimatedResolutionTime"`
}

// Config holds the routing thresholds
type Config struct {
	// AutoSubmitThreshold is the minimum confidence (0-100) for clean submission
	AutoSubmitThreshold float64
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{AutoSubmitThreshold: 85}
}

// Router decides where claims go. It holds no mutable state.
type Router struct {
	config Config
}

// NewRouter creates a router with config
func NewRouter(config Config) *Router {
	return &Router{config: config}
}

// Config returns the router thresholds
func (r *Router) Config() Config {
	return r.config
}

// Decide applies the routing rules in order; the first match wins:
//  1. missing required documents
//  2. any failure in eligibility, code or business rules
//  3. any warning or degraded stage, or confidence below the auto-submit threshold
//  4. clean submission
func (r *Router) Decide(eligibility, code, document, business validation.StageSummary, confidence float64) Decision {
	stages := []validation.StageSummary{eligibility, code, document, business}

	d := Decision{
		ConfidenceScore: confidence,
		IssuesToResolve: collectIssues(stages),
		AutoCorrections: collectCorrections(stages),
	}

	var failed []string
	for _, s := range []validation.StageSummary{eligibility, code, business} {
		if s.OverallStatus == rules.StatusFail {
			failed = append(failed, string(s.Category))
		}
	}

	switch {
	case len(document.MissingDocuments) > 0:
		d.Queue = QueueException
		d.Action = ActionRequestMissingDocuments
		d.Priority = PriorityHigh
		d.Reason = "Missing required documents: " + strings.Join(document.MissingDocuments, ", ")

	case len(failed) > 0:
		d.Queue = QueueHumanReview
		d.Action = ActionManualCorrection
		d.Priority = PriorityHigh
		if len(failed) > 1 {
			d.Priority = PriorityUrgent
		}
		d.Reason = "Validation failed: " + strings.Join(failed, ", ")

	default:
		if unsettled := unsettledStages(stages); len(unsettled) > 0 {
			d.Queue = QueueException
			d.Action = ActionReviewRecommended
			d.Priority = PriorityMedium
			d.Reason = "Review recommended: warnings in " + strings.Join(unsettled, ", ")
		} else if confidence < r.config.AutoSubmitThreshold {
			d.Queue = QueueException
			d.Action = ActionReviewRecommended
			d.Priority = PriorityMedium
			d.Reason = fmt.Sprintf("Confidence %.1f is below the auto-submit threshold of %.1f", confidence, r.config.AutoSubmitThreshold)
		} else {
			d.Queue = QueueCleanSubmission
			d.Action = ActionAutoSubmit
			d.Priority = PriorityNormal
			d.Reason = "All validation checks passed"
		}
	}

	d.EstimatedResolutionTime = d.Priority.ResolutionTime()
	return d
}

// unsettledStages lists stages that neither passed nor got caught by an earlier rule
func unsettledStages(stages []validation.StageSummary) []string {
	var out []string
	for _, s := range stages {
		if s.OverallStatus != rules.StatusPass && s.OverallStatus != "" {
			out = append(out, string(s.Category))
		}
	}
	return out
}

func collectIssues(stages []validation.StageSummary) []Issue {
	issues := []Issue{}
	for _, s := range stages {
		if s.Degraded() {
			msg := "stage could not be evaluated"
			if s.Error != "" {
				msg += ": " + s.Error
			}
			issues = append(issues, Issue{Category: s.Category, Severity: rules.StatusPending, Message: msg})
		}
		for _, c := range s.Checks {
			if c.Status != rules.StatusFail && c.Status != rules.StatusWarning {
				continue
			}
			msg := c.Details
			if msg == "" {
				msg = c.Description
			}
			issues = append(issues, Issue{Category: c.Category, Check: c.Name, Severity: c.Status, Message: msg})
		}
	}
	return issues
}

func collectCorrections(stages []validation.StageSummary) []AutoCorrection {
	corrections := []AutoCorrection{}
	for _, s := range stages {
		for _, c := range s.Checks {
			if c.Suggestion == "" || c.Status == rules.StatusPass {
				continue
			}
			corrections = append(corrections, AutoCorrection{Category: c.Category, Check: c.Name, Suggestion: c.Suggestion})
		}
	}
	return corrections
}
