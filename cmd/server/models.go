package main

import (
	"time"

	"github.com/liamcoop/claims/pipeline"
	"github.com/liamcoop/claims/rules"
)

// API request and response models

// CreatePayerRequest is the body for POST /payers. An empty id is generated.
type CreatePayerRequest struct {
	ID   string `json:"id" example:"acme-health"`
	Name string `json:"name" example:"Acme Health"`
}

// PayerResponse represents a payer in API responses
type PayerResponse struct {
	ID        string    `json:"id" example:"acme-health"`
	Name      string    `json:"name" example:"Acme Health"`
	RuleCount int       `json:"ruleCount" example:"8"`
	CreatedAt time.Time `json:"createdAt" example:"2024-01-15T10:30:00Z"`
}

// PayersListResponse represents the response for listing payers
type PayersListResponse struct {
	Payers []PayerResponse `json:"payers"`
}

// CreateRuleRequest is the body for POST /payers/{payerId}/rules.
// An empty id is generated; a missing isActive means active.
type CreateRuleRequest struct {
	ID             string               `json:"id,omitempty"`
	Name           string               `json:"name" example:"Member ID Required"`
	Description    string               `json:"description,omitempty"`
	Category       rules.Category       `json:"category" example:"eligibility"`
	Conditions     []rules.Condition    `json:"conditions"`
	ConditionLogic rules.ConditionLogic `json:"conditionLogic,omitempty" example:"and"`
	Actions        []rules.RuleAction   `json:"actions"`
	Priority       int                  `json:"priority" example:"10"`
	IsActive       *bool                `json:"isActive,omitempty"`
}

func (req CreateRuleRequest) toRule() *rules.BusinessRule {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &rules.BusinessRule{
		ID:             req.ID,
		Name:           req.Name,
		Description:    req.Description,
		Category:       req.Category,
		Conditions:     req.Conditions,
		ConditionLogic: req.ConditionLogic,
		Actions:        req.Actions,
		Priority:       req.Priority,
		IsActive:       active,
	}
}

// RulesListResponse represents the response for listing rules
type RulesListResponse struct {
	Rules []*rules.BusinessRule `json:"rules"`
}

// ClaimRequest carries one extracted claim. Metadata uses the loose string map
// produced by the extraction step.
type ClaimRequest struct {
	ClaimID       string                 `json:"claimId,omitempty"`
	Fields        []rules.ExtractedField `json:"fields"`
	DateOfService string                 `json:"dateOfService,omitempty" example:"2024-03-15"`
	ClaimAmount   *float64               `json:"claimAmount,omitempty" example:"250.00"`
	DocumentType  string                 `json:"documentType,omitempty" example:"cms1500"`
	Metadata      map[string]string      `json:"metadata,omitempty"`
}

func (req ClaimRequest) toContext() *rules.ExecutionContext {
	return &rules.ExecutionContext{
		ClaimID:       req.ClaimID,
		Fields:        req.Fields,
		DateOfService: req.DateOfService,
		ClaimAmount:   req.ClaimAmount,
		DocumentType:  req.DocumentType,
		Metadata:      rules.MetadataFromMap(req.Metadata),
	}
}

// ProcessClaimResponse wraps the pipeline result
type ProcessClaimResponse struct {
	PayerID string          `json:"payerId"`
	Result  pipeline.Result `json:"result"`
}

// ValidateClaimResponse lists raw rule results for one category or all of them
type ValidateClaimResponse struct {
	PayerID        string             `json:"payerId"`
	Category       string             `json:"category,omitempty"`
	Results        []rules.RuleResult `json:"results"`
	EvaluationTime string             `json:"evaluationTime" example:"1.2ms"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"rule not found"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string            `json:"status" example:"healthy"`
	PayersLoaded int               `json:"payersLoaded"`
	Checks       map[string]string `json:"checks,omitempty"`
}
