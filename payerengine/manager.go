// Package payerengine keeps one isolated rules engine per payer.
package payerengine

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/claims/internal/logger"
	"github.com/liamcoop/claims/rules"
)

var (
	ErrPayerNotFound = errors.New("payer not found")
	ErrPayerExists   = errors.New("payer already exists")
)

// Config wires the storage and caching used for every payer engine.
// A nil DB keeps rule catalogs in memory; a nil Redis client uses in-process caches.
type Config struct {
	DB          *sql.DB
	Redis       redis.UniversalClient
	CacheTTL    time.Duration
	CachePrefix string

	// Defaults seeds the built-in rules into empty catalogs when set
	Defaults *rules.DefaultRuleConfig
	// ExtraRules are added to every new payer; rules already present are left alone
	ExtraRules []*rules.BusinessRule
}

// Payer is a loaded payer and its engine
type Payer struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"createdAt"`
	Engine    *rules.Engine `json:"-"`
}

// Manager manages engines for all payers
type Manager struct {
	config Config
	payers map[string]*Payer
	mu     sync.RWMutex
}

// NewManager creates an empty manager
func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
		payers: make(map[string]*Payer),
	}
}

// LoadAllPayers creates engines for every payer registered in the database.
// Payers already loaded are skipped.
func (m *Manager) LoadAllPayers() (int, error) {
	if m.config.DB == nil {
		return 0, nil
	}

	records, err := rules.ListPayers(m.config.DB)
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, rec := range records {
		if _, err := m.Engine(rec.ID); err == nil {
			continue
		}
		payer, err := m.buildPayer(rec.ID, rec.Name)
		if err != nil {
			return loaded, fmt.Errorf("failed to initialize payer %s: %w", rec.ID, err)
		}
		payer.CreatedAt = rec.CreatedAt
		if err := m.register(payer); err != nil {
			return loaded, err
		}
		loaded++
	}

	logger.Info("payers loaded", "count", loaded)
	return loaded, nil
}

// CreatePayer registers a payer and builds its engine
func (m *Manager) CreatePayer(payerID, name string) (*Payer, error) {
	if err := ValidatePayerID(payerID); err != nil {
		return nil, err
	}
	if name == "" {
		name = payerID
	}

	m.mu.RLock()
	_, exists := m.payers[payerID]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrPayerExists, payerID)
	}

	if m.config.DB != nil {
		if err := rules.RegisterPayer(m.config.DB, payerID, name); err != nil {
			return nil, err
		}
	}

	payer, err := m.buildPayer(payerID, name)
	if err != nil {
		return nil, err
	}
	if err := m.register(payer); err != nil {
		return nil, err
	}

	logger.Info("payer created", "payer_id", payerID)
	return payer, nil
}

func (m *Manager) buildPayer(payerID, name string) (*Payer, error) {
	var store rules.RuleStore
	if m.config.DB != nil {
		store = rules.NewPostgresRuleStore(m.config.DB, payerID)
	} else {
		store = rules.NewInMemoryRuleStore()
	}

	cacheConfig := rules.CacheConfig{TTL: m.config.CacheTTL}
	var cache rules.RulesCache
	if m.config.Redis != nil {
		cache = rules.NewRedisRulesCache(m.config.Redis, m.config.CachePrefix, payerID, cacheConfig)
	} else {
		cache = rules.NewInMemoryRulesCache(cacheConfig)
	}

	opts := []rules.Option{rules.WithCache(cache)}
	if m.config.Defaults != nil {
		opts = append(opts, rules.WithDefaultRules(*m.config.Defaults))
	}

	engine, err := rules.NewEngine(store, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	for _, rule := range m.config.ExtraRules {
		err := engine.AddRule(rule.Clone())
		if err != nil && !errors.Is(err, rules.ErrDuplicateRule) {
			return nil, fmt.Errorf("failed to add rule %s: %w", rule.ID, err)
		}
	}

	return &Payer{ID: payerID, Name: name, CreatedAt: time.Now().UTC(), Engine: engine}, nil
}

func (m *Manager) register(payer *Payer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.payers[payer.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPayerExists, payer.ID)
	}
	m.payers[payer.ID] = payer
	return nil
}

// Engine retrieves the engine for a specific payer
func (m *Manager) Engine(payerID string) (*rules.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.payers[payerID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPayerNotFound, payerID)
	}
	return p.Engine, nil
}

// ListPayers returns all loaded payers ordered by id
func (m *Manager) ListPayers() []Payer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	payers := make([]Payer, 0, len(m.payers))
	for _, p := range m.payers {
		payers = append(payers, *p)
	}
	sort.Slice(payers, func(i, j int) bool { return payers[i].ID < payers[j].ID })
	return payers
}

// DeletePayer unloads a payer's engine. The payer's stored rules are kept.
func (m *Manager) DeletePayer(payerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.payers[payerID]; !exists {
		return fmt.Errorf("%w: %s", ErrPayerNotFound, payerID)
	}

	delete(m.payers, payerID)
	return nil
}
