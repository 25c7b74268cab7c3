package rules

import (
	"fmt"
	"sync"

	"github.com/liamcoop/claims/internal/logger"
)

// Engine runs the rule catalog against execution contexts.
// Each engine owns its store; there is no process-wide instance.
// Execution holds the read lock for a whole pass and mutations take the write
// lock, so a catalog change never lands in the middle of an evaluation.
type Engine struct {
	store     RuleStore
	cache     RulesCache
	evaluator *Evaluator
	executor  *Executor
	seed      *DefaultRuleConfig
	mu        sync.RWMutex
}

// Option configures an Engine
type Option func(*Engine)

// WithCache replaces the default in-memory rules cache
func WithCache(cache RulesCache) Option {
	return func(en *Engine) {
		en.cache = cache
	}
}

// WithDefaultRules seeds the built-in rule set when the store is empty
func WithDefaultRules(cfg DefaultRuleConfig) Option {
	return func(en *Engine) {
		en.seed = &cfg
	}
}

// NewEngine creates a rules engine over store
func NewEngine(store RuleStore, opts ...Option) (*Engine, error) {
	evaluator, err := NewEvaluator()
	if err != nil {
		return nil, err
	}

	en := &Engine{
		store:     store,
		cache:     NewInMemoryRulesCache(DefaultCacheConfig()),
		evaluator: evaluator,
		executor:  NewExecutor(evaluator),
	}
	for _, opt := range opts {
		opt(en)
	}

	if en.seed != nil {
		if err := en.seedDefaults(*en.seed); err != nil {
			return nil, err
		}
	}

	if err := en.warm(); err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	return en, nil
}

func (en *Engine) seedDefaults(cfg DefaultRuleConfig) error {
	existing, err := en.store.List()
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, rule := range DefaultRules(cfg) {
		if err := en.store.Add(rule); err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
		}
	}
	return nil
}

// warm loads the active rules into the cache and precompiles their patterns and
// expressions so broken definitions show up in the logs at startup
func (en *Engine) warm() error {
	active, err := en.store.ListActive()
	if err != nil {
		return err
	}
	for _, rule := range active {
		en.precompile(rule)
	}
	en.cache.Set(active)
	return nil
}

func (en *Engine) precompile(rule *BusinessRule) {
	for _, cond := range rule.Conditions {
		var err error
		switch cond.Operator {
		case OperatorRegex:
			_, err = en.evaluator.pattern(cond.Value.String())
		case OperatorExpression:
			_, err = en.evaluator.expressions.Compile(cond.Value.String())
		default:
			continue
		}
		if err != nil {
			logger.RuleError(rule.ID, string(cond.Operator), err)
		}
	}
}

// GetRules returns a snapshot of every rule, active or not
func (en *Engine) GetRules() ([]*BusinessRule, error) {
	en.mu.RLock()
	defer en.mu.RUnlock()

	return en.store.List()
}

// GetRule returns a copy of one rule
func (en *Engine) GetRule(id string) (*BusinessRule, error) {
	en.mu.RLock()
	defer en.mu.RUnlock()

	return en.store.Get(id)
}

// Execute runs every active rule, ordered by priority then insertion
func (en *Engine) Execute(ec *ExecutionContext) ([]RuleResult, error) {
	return en.execute(ec, func(*BusinessRule) bool { return true })
}

// ExecuteByCategory runs the active rules of a single category
func (en *Engine) ExecuteByCategory(ec *ExecutionContext, category Category) ([]RuleResult, error) {
	return en.execute(ec, func(r *BusinessRule) bool { return r.Category == category })
}

func (en *Engine) execute(ec *ExecutionContext, include func(*BusinessRule) bool) ([]RuleResult, error) {
	en.mu.RLock()
	defer en.mu.RUnlock()

	active, err := en.activeRules()
	if err != nil {
		return nil, err
	}

	results := make([]RuleResult, 0, len(active))
	for _, rule := range active {
		if !rule.IsActive || !include(rule) {
			continue
		}
		results = append(results, en.executor.Run(rule, ec))
	}
	return results, nil
}

// activeRules reads through the cache; callers hold at least the read lock
func (en *Engine) activeRules() ([]*BusinessRule, error) {
	if cached := en.cache.Get(); cached != nil {
		return cached, nil
	}

	active, err := en.store.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list active rules: %w", err)
	}
	en.cache.Set(active)
	return active, nil
}

// AddRule validates and stores a new rule. Duplicate ids fail with ErrDuplicateRule.
func (en *Engine) AddRule(rule *BusinessRule) error {
	r := rule.Clone()
	if r != nil {
		normalizeRule(r)
	}
	if err := ValidateRule(r); err != nil {
		return err
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	if err := en.store.Add(r); err != nil {
		return err
	}
	en.cache.Invalidate()
	en.precompile(r)

	rule.ConditionLogic = r.ConditionLogic
	rule.CreatedAt = r.CreatedAt
	rule.UpdatedAt = r.UpdatedAt
	return nil
}

// UpdateRule applies a partial update. Unknown ids fail with ErrRuleNotFound.
func (en *Engine) UpdateRule(id string, patch RulePatch) (*BusinessRule, error) {
	en.mu.Lock()
	defer en.mu.Unlock()

	existing, err := en.store.Get(id)
	if err != nil {
		return nil, err
	}

	updated := patch.Apply(existing)
	normalizeRule(updated)
	if err := ValidateRule(updated); err != nil {
		return nil, err
	}

	if err := en.store.Update(updated); err != nil {
		return nil, err
	}
	en.cache.Invalidate()
	en.precompile(updated)

	return updated.Clone(), nil
}

// RemoveRule deletes a rule. Unknown ids fail with ErrRuleNotFound.
func (en *Engine) RemoveRule(id string) error {
	en.mu.Lock()
	defer en.mu.Unlock()

	if err := en.store.Delete(id); err != nil {
		return err
	}
	en.cache.Invalidate()
	return nil
}
