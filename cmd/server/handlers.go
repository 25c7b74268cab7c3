package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/liamcoop/claims/internal/logger"
	"github.com/liamcoop/claims/internal/metrics"
	"github.com/liamcoop/claims/payerengine"
	"github.com/liamcoop/claims/pipeline"
	"github.com/liamcoop/claims/rules"
)

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:       "healthy",
		PayersLoaded: len(s.payers.ListPayers()),
		Checks:       map[string]string{},
	}
	status := http.StatusOK

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Checks["database"] = err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["database"] = "ok"
		}
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			// rules fall back to the store without redis
			resp.Checks["redis"] = err.Error()
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		} else {
			resp.Checks["redis"] = "ok"
		}
	}

	respondJSON(w, status, resp)
}

// List payers handler
func (s *Server) handleListPayers(w http.ResponseWriter, r *http.Request) {
	payers := s.payers.ListPayers()

	resp := PayersListResponse{Payers: make([]PayerResponse, 0, len(payers))}
	for _, p := range payers {
		resp.Payers = append(resp.Payers, toPayerResponse(p))
	}

	respondJSON(w, http.StatusOK, resp)
}

// Create payer handler
func (s *Server) handleCreatePayer(w http.ResponseWriter, r *http.Request) {
	var req CreatePayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	payer, err := s.payers.CreatePayer(req.ID, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, payerengine.ErrPayerExists):
			respondError(w, http.StatusConflict, "payer already exists", err)
		case errors.Is(err, payerengine.ErrInvalidPayerID):
			respondError(w, http.StatusBadRequest, "invalid payer id", err)
		default:
			respondError(w, http.StatusInternalServerError, "failed to create payer", err)
		}
		return
	}

	respondJSON(w, http.StatusCreated, toPayerResponse(*payer))
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.payerEngine(w, r)
	if !ok {
		return
	}

	list, err := engine.GetRules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}

	respondJSON(w, http.StatusOK, RulesListResponse{Rules: list})
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.payerEngine(w, r)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	rule := req.toRule()
	if err := engine.AddRule(rule); err != nil {
		respondRuleError(w, "failed to add rule", err)
		return
	}
	metrics.RecordRuleMutation(chi.URLParam(r, "payerId"), "add")

	respondJSON(w, http.StatusCreated, rule)
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.payerEngine(w, r)
	if !ok {
		return
	}

	rule, err := engine.GetRule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondRuleError(w, "failed to get rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Update rule handler; only fields present in the body change
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.payerEngine(w, r)
	if !ok {
		return
	}

	var patch rules.RulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	updated, err := engine.UpdateRule(chi.URLParam(r, "ruleId"), patch)
	if err != nil {
		respondRuleError(w, "failed to update rule", err)
		return
	}
	metrics.RecordRuleMutation(chi.URLParam(r, "payerId"), "update")

	respondJSON(w, http.StatusOK, updated)
}

// Delete rule handler
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.payerEngine(w, r)
	if !ok {
		return
	}

	if err := engine.RemoveRule(chi.URLParam(r, "ruleId")); err != nil {
		respondRuleError(w, "failed to delete rule", err)
		return
	}
	metrics.RecordRuleMutation(chi.URLParam(r, "payerId"), "remove")

	w.WriteHeader(http.StatusNoContent)
}

// Process claim handler: runs the full pipeline and returns the routing decision.
// A claim the pipeline rejects comes back as 422 with the result attached.
func (s *Server) handleProcessClaim(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.payerEngine(w, r)
	if !ok {
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result := pipeline.New(engine, s.pipelineOpts...).Process(r.Context(), req.toContext())

	status := http.StatusOK
	if result.Status == pipeline.StatusError {
		status = http.StatusUnprocessableEntity
		logger.WarnHttp4xx()
	}

	respondJSON(w, status, ProcessClaimResponse{
		PayerID: chi.URLParam(r, "payerId"),
		Result:  result,
	})
}

// Validate claim handler: raw rule results, optionally for one category
func (s *Server) handleValidateClaim(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.payerEngine(w, r)
	if !ok {
		return
	}

	category := rules.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		respondError(w, http.StatusBadRequest, "unknown category", nil)
		return
	}

	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()
	var (
		results []rules.RuleResult
		err     error
	)
	if category == "" {
		results, err = engine.Execute(req.toContext())
	} else {
		results, err = engine.ExecuteByCategory(req.toContext(), category)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "evaluation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, ValidateClaimResponse{
		PayerID:        chi.URLParam(r, "payerId"),
		Category:       string(category),
		Results:        results,
		EvaluationTime: time.Since(start).String(),
	})
}

// payerEngine resolves {payerId}, writing a 404 when the payer isn't loaded
func (s *Server) payerEngine(w http.ResponseWriter, r *http.Request) (*rules.Engine, bool) {
	engine, err := s.payers.Engine(chi.URLParam(r, "payerId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "payer not found", err)
		return nil, false
	}
	return engine, true
}

func toPayerResponse(p payerengine.Payer) PayerResponse {
	resp := PayerResponse{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt}
	if p.Engine != nil {
		if list, err := p.Engine.GetRules(); err == nil {
			resp.RuleCount = len(list)
		}
	}
	return resp
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}

	switch {
	case status >= 500:
		logger.ErrorHttp5xx()
		logger.Error(message, "status", status, "error", err)
	case status >= 400:
		logger.WarnHttp4xx()
	}

	respondJSON(w, status, resp)
}

// respondRuleError maps rule catalog sentinel errors onto status codes
func respondRuleError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, rules.ErrRuleNotFound):
		respondError(w, http.StatusNotFound, "rule not found", err)
	case errors.Is(err, rules.ErrDuplicateRule):
		respondError(w, http.StatusConflict, "rule already exists", err)
	case errors.Is(err, rules.ErrInvalidRule):
		respondError(w, http.StatusBadRequest, "invalid rule", err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}
