package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFile is the on-disk shape for rule catalogs:
//
//	rules:
//	  - id: member-id
//	    name: Member ID Required
//	    category: eligibility
//	    conditions:
//	      - field: Member ID
//	        operator: is_not_empty
//	    actions:
//	      - type: pass
//	      - type: fail
//	        message: Member ID is missing
type RulesFile struct {
	Rules []*BusinessRule `yaml:"rules"`
}

// ParseRules decodes and validates a YAML rule catalog.
// isActive defaults to true when the key is omitted.
func ParseRules(data []byte) ([]*BusinessRule, error) {
	var raw struct {
		Rules []yaml.Node `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	seen := make(map[string]bool, len(raw.Rules))
	out := make([]*BusinessRule, 0, len(raw.Rules))
	for i := range raw.Rules {
		node := &raw.Rules[i]

		rule := &BusinessRule{IsActive: true}
		if err := node.Decode(rule); err != nil {
			return nil, fmt.Errorf("rule %d (line %d): %w", i, node.Line, err)
		}
		normalizeRule(rule)
		if err := ValidateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %d (line %d): %w", i, node.Line, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("rule %d (line %d): id %s: %w", i, node.Line, rule.ID, ErrDuplicateRule)
		}
		seen[rule.ID] = true
		out = append(out, rule)
	}
	return out, nil
}

// LoadRulesFile reads a YAML rule catalog from disk
func LoadRulesFile(path string) ([]*BusinessRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// MarshalRules encodes rules in the RulesFile shape
func MarshalRules(rules []*BusinessRule) ([]byte, error) {
	return yaml.Marshal(RulesFile{Rules: rules})
}
