//go:build integration
// +build integration

package payerengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/liamcoop/claims/rules"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "testdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
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
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("Database never became ready: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}
	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db, func() {
		db.Close()
		postgres.Terminate(ctx)
	}
}

// TestManagerPersistsAcrossRestarts verifies payers and their rules reload from Postgres
func TestManagerPersistsAcrossRestarts(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	defaults := rules.DefaultThresholds()
	first := NewManager(Config{DB: db, Defaults: &defaults})

	payer, err := first.CreatePayer("acme", "Acme Health")
	if err != nil {
		t.Fatalf("CreatePayer() error = %v", err)
	}
	if err := payer.Engine.RemoveRule("document-quality"); err != nil {
		t.Fatalf("RemoveRule() error = %v", err)
	}

	second := NewManager(Config{DB: db, Defaults: &defaults})
	n, err := second.LoadAllPayers()
	if err != nil {
		t.Fatalf("LoadAllPayers() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 payer loaded, got %d", n)
	}

	engine, err := second.Engine("acme")
	if err != nil {
		t.Fatalf("Engine() error = %v", err)
	}
	if _, err := engine.GetRule("document-quality"); !errors.Is(err, rules.ErrRuleNotFound) {
		t.Errorf("removed rule came back after reload: %v", err)
	}
	got, _ := engine.GetRules()
	if len(got) != len(rules.DefaultRules(defaults))-1 {
		t.Errorf("expected %d rules after reload, got %d", len(rules.DefaultRules(defaults))-1, len(got))
	}

	payers := second.ListPayers()
	if len(payers) != 1 || payers[0].Name != "Acme Health" {
		t.Errorf("unexpected payers after reload: %+v", payers)
	}
}

// TestManagerWithRedisCache verifies engines read through a shared Redis cache
func TestManagerWithRedisCache(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: endpoint})
	defer client.Close()

	defaults := rules.DefaultThresholds()
	m := NewManager(Config{DB: db, Redis: client, CacheTTL: time.Minute, CachePrefix: "test", Defaults: &defaults})

	payer, err := m.CreatePayer("acme", "")
	if err != nil {
		t.Fatalf("CreatePayer() error = %v", err)
	}

	ec := &rules.ExecutionContext{Fields: []rules.ExtractedField{{Label: rules.LabelMemberID, Value: "W1"}}}
	results, err := payer.Engine.ExecuteByCategory(ec, rules.CategoryEligibility)
	if err != nil {
		t.Fatalf("ExecuteByCategory() error = %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 eligibility results, got %d", len(results))
	}

	keys, err := client.Keys(ctx, "test:*").Result()
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) == 0 {
		t.Error("expected the active rule set to be cached in Redis")
	}
}
