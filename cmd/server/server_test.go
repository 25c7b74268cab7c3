//go:build integration

package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../../migrations/000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}

	return db, cleanup
}

func startServer(t *testing.T, db *sql.DB) (*httptest.Server, func()) {
	t.Helper()
	cfg := testConfig()

	manager, err := newManager(cfg, db, nil)
	if err != nil {
		t.Fatalf("Failed to create payer manager: %v", err)
	}
	if _, err := manager.LoadAllPayers(); err != nil {
		t.Fatalf("Failed to load payers: %v", err)
	}

	ts := httptest.NewServer(NewServer(cfg, manager, db, nil))
	return ts, ts.Close
}

// TestEndToEnd_CreatePayerAndProcessClaim tests the complete workflow:
// 1. Create payer (defaults seeded into postgres)
// 2. Add a custom rule
// 3. Process a claim that trips the custom rule
// 4. Process a clean claim
func TestEndToEnd_CreatePayerAndProcessClaim(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts, stop := startServer(t, db)
	defer stop()

	baseURL := ts.URL + "/api/v1"

	t.Log("Step 1: Creating payer...")
	payerResp := makeRequest(t, "POST", baseURL+"/payers", map[string]any{
		"id":   "acme",
		"name": "Acme Health",
	})
	if payerResp["ruleCount"].(float64) == 0 {
		t.Fatalf("Expected default rules to be seeded, got %v", payerResp["ruleCount"])
	}

	t.Log("Step 2: Adding rule...")
	ruleResp := makeRequest(t, "POST", baseURL+"/payers/acme/rules", map[string]any{
		"id":       "code-no-unlisted",
		"name":     "Unlisted Procedure",
		"category": "code",
		"conditions": []map[string]any{
			{"field": "CPT Code", "operator": "in_list", "value": []string{"99499", "99199"}},
		},
		"actions": []map[string]any{
			{"type": "fail", "message": "Unlisted procedure codes need a report"},
			{"type": "pass"},
		},
		"priority": 90,
	})
	if ruleResp["id"] != "code-no-unlisted" {
		t.Fatalf("Unexpected rule id %v", ruleResp["id"])
	}

	t.Log("Step 3: Processing claim with unlisted CPT...")
	claim := map[string]any{
		"claimId":      "claim-1",
		"documentType": "cms1500",
		"claimAmount":  180.0,
		"fields": []map[string]any{
			{"label": "Member ID", "value": "W123456789"},
			{"label": "Patient Name", "value": "Jane Doe"},
			{"label": "NPI", "value": "1234567893"},
			{"label": "Diagnosis Code", "value": "J06.9"},
			{"label": "CPT Code", "value": "99499"},
			{"label": "Date of Service", "value": "2024-03-15"},
		},
	}
	result := makeRequest(t, "POST", baseURL+"/payers/acme/claims/process", claim)
	decision := result["result"].(map[string]any)["routingDecision"].(map[string]any)
	if decision["queue"] != "human_review" {
		t.Errorf("Expected human_review, got %v", decision["queue"])
	}

	t.Log("Step 4: Processing clean claim...")
	fields := claim["fields"].([]map[string]any)
	fields[4] = map[string]any{"label": "CPT Code", "value": "99213"}
	result = makeRequest(t, "POST", baseURL+"/payers/acme/claims/process", claim)
	decision = result["result"].(map[string]any)["routingDecision"].(map[string]any)
	if decision["queue"] != "clean_submission" {
		t.Errorf("Expected clean_submission, got %v (%v)", decision["queue"], decision["reason"])
	}
}

// TestEndToEnd_PayersSurviveRestart verifies catalogs are reloaded from postgres
func TestEndToEnd_PayersSurviveRestart(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts, stop := startServer(t, db)
	baseURL := ts.URL + "/api/v1"

	makeRequest(t, "POST", baseURL+"/payers", map[string]any{"id": "globex"})
	makeRequest(t, "PATCH", baseURL+"/payers/globex/rules/business-high-dollar", map[string]any{"isActive": false})
	stop()

	ts, stop = startServer(t, db)
	defer stop()
	baseURL = ts.URL + "/api/v1"

	rule := makeRequestNoBody(t, "GET", baseURL+"/payers/globex/rules/business-high-dollar")
	if rule["isActive"] != false {
		t.Errorf("Expected rule to stay inactive after restart, got %v", rule["isActive"])
	}
}

// TestEndToEnd_DuplicateRuleConflict verifies duplicate ids return 409
func TestEndToEnd_DuplicateRuleConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ts, stop := startServer(t, db)
	defer stop()
	baseURL := ts.URL + "/api/v1"

	makeRequest(t, "POST", baseURL+"/payers", map[string]any{"id": "initech"})

	resp, err := makeHTTPRequest("POST", baseURL+"/payers/initech/rules", map[string]any{
		"id":       "eligibility-member-id",
		"name":     "Member ID Required",
		"category": "eligibility",
		"actions":  []map[string]any{{"type": "pass"}},
	})
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected 409, got %d: %s", resp.StatusCode, string(body))
	}
}

// Helper function to make HTTP requests with JSON body
func makeRequest(t *testing.T, method, url string, body any) map[string]any {
	resp, err := makeHTTPRequest(method, url, body)
	if err != nil {
		t.Fatalf("Failed to make %s request to %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("Request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return result
}

// Helper function to make HTTP requests without body
func makeRequestNoBody(t *testing.T, method, url string) map[string]any {
	return makeRequest(t, method, url, nil)
}

// Helper function to make raw HTTP requests
func makeHTTPRequest(method, url string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	return client.Do(req)
}
