package rules

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrRuleNotFound is returned when a rule id is not in the store
	ErrRuleNotFound = errors.New("rule not found")
	// ErrDuplicateRule is returned when adding a rule whose id already exists
	ErrDuplicateRule = errors.New("rule already exists")
)

// RuleStore holds the rule catalog.
// List and ListActive return rules ordered by ascending priority, then insertion order.
type RuleStore interface {
	// Add a new rule; duplicate ids are rejected with ErrDuplicateRule
	Add(rule *BusinessRule) error

	// Get a rule by ID
	Get(id string) (*BusinessRule, error)

	// List all rules, active or not
	List() ([]*BusinessRule, error)

	// ListActive lists rules with IsActive set
	ListActive() ([]*BusinessRule, error)

	// Update replaces an existing rule
	Update(rule *BusinessRule) error

	// Delete a rule
	Delete(id string) error
}

type storedRule struct {
	rule *BusinessRule
	seq  uint64
}

// InMemoryRuleStore implements RuleStore using an in-memory map
type InMemoryRuleStore struct {
	rules   map[string]storedRule
	nextSeq uint64
	mu      sync.RWMutex
}

// NewInMemoryRuleStore creates an empty in-memory rule store
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]storedRule),
	}
}

// Add stores a copy of the rule and stamps CreatedAt/UpdatedAt
func (s *InMemoryRuleStore) Add(rule *BusinessRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule with ID %s: %w", rule.ID, ErrDuplicateRule)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	s.nextSeq++
	s.rules[rule.ID] = storedRule{rule: rule.Clone(), seq: s.nextSeq}
	return nil
}

// Get returns a copy of the rule
func (s *InMemoryRuleStore) Get(id string) (*BusinessRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule with ID %s: %w", id, ErrRuleNotFound)
	}
	return stored.rule.Clone(), nil
}

// List returns copies of every rule
func (s *InMemoryRuleStore) List() ([]*BusinessRule, error) {
	return s.list(false), nil
}

// ListActive returns copies of the active rules
func (s *InMemoryRuleStore) ListActive() ([]*BusinessRule, error) {
	return s.list(true), nil
}

func (s *InMemoryRuleStore) list(activeOnly bool) []*BusinessRule {
	s.mu.RLock()
	entries := make([]storedRule, 0, len(s.rules))
	for _, stored := range s.rules {
		if activeOnly && !stored.rule.IsActive {
			continue
		}
		entries = append(entries, stored)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rule.Priority != entries[j].rule.Priority {
			return entries[i].rule.Priority < entries[j].rule.Priority
		}
		return entries[i].seq < entries[j].seq
	})

	out := make([]*BusinessRule, len(entries))
	for i, stored := range entries {
		out[i] = stored.rule.Clone()
	}
	return out
}

// Update replaces an existing rule, keeping its CreatedAt and insertion position
func (s *InMemoryRuleStore) Update(rule *BusinessRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("rule with ID %s: %w", rule.ID, ErrRuleNotFound)
	}

	rule.CreatedAt = existing.rule.CreatedAt
	rule.UpdatedAt = time.Now()
	s.rules[rule.ID] = storedRule{rule: rule.Clone(), seq: existing.seq}
	return nil
}

// Delete removes a rule from the store
func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("rule with ID %s: %w", id, ErrRuleNotFound)
	}

	delete(s.rules, id)
	return nil
}
