package rules

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL, scoped to one payer
type PostgresRuleStore struct {
	db      *sql.DB
	payerID string
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore for a specific payer
func NewPostgresRuleStore(db *sql.DB, payerID string) *PostgresRuleStore {
	return &PostgresRuleStore{
		db:      db,
		payerID: payerID,
	}
}

const selectRuleColumns = `
	SELECT id, name, description, category, conditions, condition_logic, actions,
	       priority, active, created_at, updated_at
	FROM rules`

// Add inserts a new rule
func (s *PostgresRuleStore) Add(rule *BusinessRule) error {
	conditions, actions, err := encodeRuleBody(rule)
	if err != nil {
		return err
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	result, err := s.db.Exec(`
		INSERT INTO rules (id, payer_id, name, description, category, conditions,
		                   condition_logic, actions, priority, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (payer_id, id) DO NOTHING
	`, rule.ID, s.payerID, rule.Name, rule.Description, string(rule.Category), conditions,
		string(rule.ConditionLogic), actions, rule.Priority, rule.IsActive,
		rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule with ID %s: %w", rule.ID, ErrDuplicateRule)
	}

	return nil
}

// Get retrieves a rule by ID
func (s *PostgresRuleStore) Get(id string) (*BusinessRule, error) {
	row := s.db.QueryRow(selectRuleColumns+`
		WHERE id = $1 AND payer_id = $2
	`, id, s.payerID)

	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule with ID %s: %w", id, ErrRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns every rule for the payer
func (s *PostgresRuleStore) List() ([]*BusinessRule, error) {
	return s.query(selectRuleColumns+`
		WHERE payer_id = $1
		ORDER BY priority ASC, seq ASC
	`, s.payerID)
}

// ListActive returns the payer's active rules
func (s *PostgresRuleStore) ListActive() ([]*BusinessRule, error) {
	return s.query(selectRuleColumns+`
		WHERE payer_id = $1 AND active = true
		ORDER BY priority ASC, seq ASC
	`, s.payerID)
}

func (s *PostgresRuleStore) query(q string, args ...any) ([]*BusinessRule, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rulesList := []*BusinessRule{}
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rulesList = append(rulesList, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rulesList, nil
}

// Update modifies an existing rule, keeping created_at and its insertion position
func (s *PostgresRuleStore) Update(rule *BusinessRule) error {
	conditions, actions, err := encodeRuleBody(rule)
	if err != nil {
		return err
	}

	rule.UpdatedAt = time.Now()

	err = s.db.QueryRow(`
		UPDATE rules
		SET name = $1, description = $2, category = $3, conditions = $4,
		    condition_logic = $5, actions = $6, priority = $7, active = $8, updated_at = $9
		WHERE id = $10 AND payer_id = $11
		RETURNING created_at
	`, rule.Name, rule.Description, string(rule.Category), conditions,
		string(rule.ConditionLogic), actions, rule.Priority, rule.IsActive, rule.UpdatedAt,
		rule.ID, s.payerID).Scan(&rule.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("rule with ID %s: %w", rule.ID, ErrRuleNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return nil
}

// Delete removes a rule from the database
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rules
		WHERE id = $1 AND payer_id = $2
	`, id, s.payerID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule with ID %s: %w", id, ErrRuleNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*BusinessRule, error) {
	var (
		r              BusinessRule
		category       string
		logic          string
		conditionsJSON []byte
		actionsJSON    []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &r.Description, &category, &conditionsJSON, &logic,
		&actionsJSON, &r.Priority, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}

	r.Category = Category(category)
	r.ConditionLogic = ConditionLogic(logic)
	if err := json.Unmarshal(conditionsJSON, &r.Conditions); err != nil {
		return nil, fmt.Errorf("rule %s has invalid conditions: %w", r.ID, err)
	}
	if err := json.Unmarshal(actionsJSON, &r.Actions); err != nil {
		return nil, fmt.Errorf("rule %s has invalid actions: %w", r.ID, err)
	}
	return &r, nil
}

func encodeRuleBody(rule *BusinessRule) ([]byte, []byte, error) {
	conds := rule.Conditions
	if conds == nil {
		conds = []Condition{}
	}
	conditions, err := json.Marshal(conds)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode actions: %w", err)
	}
	return conditions, actions, nil
}

// PayerRecord is one row of the payers table
type PayerRecord struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ListPayers returns the payers table in creation order
func ListPayers(db *sql.DB) ([]PayerRecord, error) {
	rows, err := db.Query(`SELECT id, name, created_at FROM payers ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payers: %w", err)
	}
	defer rows.Close()

	var payers []PayerRecord
	for rows.Next() {
		var p PayerRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payer row: %w", err)
		}
		payers = append(payers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payer rows: %w", err)
	}
	return payers, nil
}

// RegisterPayer inserts a payer row if it doesn't exist yet
func RegisterPayer(db *sql.DB, payerID, name string) error {
	_, err := db.Exec(`
		INSERT INTO payers (id, name, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO NOTHING
	`, payerID, name)
	if err != nil {
		return fmt.Errorf("failed to register payer: %w", err)
	}
	return nil
}
