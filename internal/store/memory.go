package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fjacquet/stmt-import/internal/correction"
	"fjacquet/stmt-import/internal/models"
)

// Memory is an in-process store with the same contract as Store. The error
// fields force failures for testing error paths.
type Memory struct {
	mu           sync.Mutex
	entities     map[string]models.Entity // by id
	aliases      models.AliasTable
	rules        map[string]models.CorrectionRule
	transactions map[string]CommittedTransaction
	sessions     map[string]*models.ImportSession
	evaluator    *correction.Evaluator

	ListEntitiesError       error
	ListAliasesError        error
	FindMatchingRuleError   error
	SaveEntityError         error
	PersistTransactionError error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entities:     make(map[string]models.Entity),
		aliases:      make(models.AliasTable),
		rules:        make(map[string]models.CorrectionRule),
		transactions: make(map[string]CommittedTransaction),
		sessions:     make(map[string]*models.ImportSession),
		evaluator:    correction.NewEvaluator(),
	}
}

// ListEntities returns a copy of the entity lookup.
func (m *Memory) ListEntities(ctx context.Context) (models.EntityLookup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListEntitiesError != nil {
		return nil, m.ListEntitiesError
	}
	lookup := make(models.EntityLookup, len(m.entities))
	for id, e := range m.entities {
		lookup[e.Name] = id
	}
	return lookup, nil
}

// ListAliases returns a copy of the alias table.
func (m *Memory) ListAliases(ctx context.Context) (models.AliasTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListAliasesError != nil {
		return nil, m.ListAliasesError
	}
	aliases := make(models.AliasTable, len(m.aliases))
	for k, v := range m.aliases {
		aliases[k] = v
	}
	return aliases, nil
}

// SaveAlias maps alias to entityName.
func (m *Memory) SaveAlias(ctx context.Context, alias, entityName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aliases[alias] = entityName
	return nil
}

// SaveEntity stores a new entity.
func (m *Memory) SaveEntity(ctx context.Context, entity models.Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveEntityError != nil {
		return m.SaveEntityError
	}
	for _, e := range m.entities {
		if strings.EqualFold(strings.TrimSpace(e.Name), strings.TrimSpace(entity.Name)) {
			return fmt.Errorf("entity %q: %w", entity.Name, ErrDuplicate)
		}
	}
	m.entities[entity.ID] = entity
	return nil
}

// FindEntityByName looks an entity up case-insensitively.
func (m *Memory) FindEntityByName(ctx context.Context, name string) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entities {
		if strings.EqualFold(strings.TrimSpace(e.Name), strings.TrimSpace(name)) {
			found := e
			return &found, nil
		}
	}
	return nil, fmt.Errorf("entity %q: %w", name, ErrNotFound)
}

// ListRules returns every rule, best first.
func (m *Memory) ListRules(ctx context.Context) ([]models.CorrectionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rules := make([]models.CorrectionRule, 0, len(m.rules))
	for _, r := range m.rules {
		rules = append(rules, r)
	}
	correction.SortRules(rules)
	return rules, nil
}

// FindMatchingRule returns the best rule matching description, or nil.
func (m *Memory) FindMatchingRule(ctx context.Context, description string) (*models.CorrectionRule, error) {
	if m.FindMatchingRuleError != nil {
		return nil, m.FindMatchingRuleError
	}
	rules, _ := m.ListRules(ctx)
	return m.evaluator.Select(rules, description), nil
}

// RecordApplication bumps a rule's usage.
func (m *Memory) RecordApplication(ctx context.Context, ruleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[ruleID]
	if !ok {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	now := time.Now().UTC()
	r.TimesApplied++
	r.LastUsedAt = &now
	m.rules[ruleID] = r
	return nil
}

// SaveRule inserts or replaces a rule, keeping usage statistics.
func (m *Memory) SaveRule(ctx context.Context, rule models.CorrectionRule) error {
	if rule.ID == "" {
		rule.ID = correction.RuleID(rule.MatchType, rule.DescriptionPattern)
	}
	if err := correction.Validate(rule); err != nil {
		return fmt.Errorf("invalid rule %s: %w", rule.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rules[rule.ID]; ok {
		rule.CreatedAt = existing.CreatedAt
		rule.TimesApplied = existing.TimesApplied
		rule.LastUsedAt = existing.LastUsedAt
	}
	m.rules[rule.ID] = rule
	return nil
}

// Rule returns a rule by id.
func (m *Memory) Rule(id string) (models.CorrectionRule, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	return r, ok
}

// PersistTransaction stores a committed transaction.
func (m *Memory) PersistTransaction(ctx context.Context, txn models.ConfirmedTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PersistTransactionError != nil {
		return m.PersistTransactionError
	}
	if _, ok := m.transactions[txn.Checksum]; ok {
		return fmt.Errorf("transaction %s: %w", txn.Checksum, ErrDuplicate)
	}
	m.transactions[txn.Checksum] = CommittedTransaction{ConfirmedTransaction: txn, CommittedAt: time.Now().UTC()}
	return nil
}

// MarkMirrored records the external page id of a committed transaction.
func (m *Memory) MarkMirrored(ctx context.Context, checksum, pageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ct, ok := m.transactions[checksum]
	if !ok {
		return fmt.Errorf("transaction %s: %w", checksum, ErrNotFound)
	}
	ct.MirrorPageID = pageID
	m.transactions[checksum] = ct
	return nil
}

// DeleteTransaction removes a committed transaction.
func (m *Memory) DeleteTransaction(ctx context.Context, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, checksum)
	return nil
}

// HasTransaction reports whether checksum was committed.
func (m *Memory) HasTransaction(ctx context.Context, checksum string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.transactions[checksum]
	return ok, nil
}

// TransactionCount returns the number of committed transactions.
func (m *Memory) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}

// SaveSession stores a snapshot of session.
func (m *Memory) SaveSession(ctx context.Context, session *models.ImportSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionID] = session.Clone()
	return nil
}

// LoadSession returns the last stored snapshot of a session.
func (m *Memory) LoadSession(ctx context.Context, id string) (*models.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s.Clone(), nil
}
