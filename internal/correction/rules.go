// Package correction evaluates operator-learned correction rules against
// transaction descriptions and derives new rules from confirmations.
package correction

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"fjacquet/stmt-import/internal/models"

	"github.com/google/uuid"
)

// MaxRegexPatternLength bounds the size of stored regex patterns.
const MaxRegexPatternLength = 512

// Transaction types recorded on learned rules.
const (
	TransactionTypeExpense = "expense"
	TransactionTypeIncome  = "income"
)

// ruleNamespace seeds deterministic rule ids so that confirming the same
// description twice updates one rule.
var ruleNamespace = uuid.MustParse("4f6b1c7e-2d0a-4b1e-9a55-3c1f0e8d7a21")

// Evaluator matches rules against descriptions. Compiled regex patterns are
// cached; an Evaluator is safe for concurrent use.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp // nil value marks an invalid pattern
}

// NewEvaluator creates an Evaluator with an empty regex cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*regexp.Regexp)}
}

// Matches reports whether rule applies to description. Exact and contains
// rules compare case-insensitively on trimmed text; regex rules are
// case-insensitive. Invalid or oversized regex patterns never match.
func (e *Evaluator) Matches(rule models.CorrectionRule, description string) bool {
	desc := strings.ToUpper(strings.TrimSpace(description))
	pattern := strings.ToUpper(strings.TrimSpace(rule.DescriptionPattern))
	if desc == "" || pattern == "" {
		return false
	}

	switch rule.MatchType {
	case models.RuleMatchExact:
		return desc == pattern
	case models.RuleMatchContains:
		return strings.Contains(desc, pattern)
	case models.RuleMatchRegex:
		re := e.compile(rule.DescriptionPattern)
		return re != nil && re.MatchString(strings.TrimSpace(description))
	default:
		return false
	}
}

// Select returns the best rule among rules that match description, or nil.
// Higher confidence wins, then higher usage, then the more specific match
// type, then the older rule.
func (e *Evaluator) Select(rules []models.CorrectionRule, description string) *models.CorrectionRule {
	var candidates []models.CorrectionRule
	for _, r := range rules {
		if e.Matches(r, description) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	SortRules(candidates)
	best := candidates[0]
	return &best
}

// SortRules orders rules by precedence, best first.
func SortRules(rules []models.CorrectionRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.TimesApplied != b.TimesApplied {
			return a.TimesApplied > b.TimesApplied
		}
		if sa, sb := specificity(a.MatchType), specificity(b.MatchType); sa != sb {
			return sa > sb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func specificity(m models.RuleMatchType) int {
	switch m {
	case models.RuleMatchExact:
		return 3
	case models.RuleMatchContains:
		return 2
	case models.RuleMatchRegex:
		return 1
	}
	return 0
}

func (e *Evaluator) compile(pattern string) *regexp.Regexp {
	e.mu.RLock()
	re, ok := e.cache[pattern]
	e.mu.RUnlock()
	if ok {
		return re
	}

	re, err := compileRegex(pattern)
	if err != nil {
		re = nil
	}

	e.mu.Lock()
	e.cache[pattern] = re
	e.mu.Unlock()
	return re
}

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > MaxRegexPatternLength {
		return nil, fmt.Errorf("regex pattern exceeds %d bytes", MaxRegexPatternLength)
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return re, nil
}

// Validate checks that a rule can be stored.
func Validate(rule models.CorrectionRule) error {
	if strings.TrimSpace(rule.DescriptionPattern) == "" {
		return errors.New("description pattern is required")
	}
	if !rule.MatchType.Valid() {
		return fmt.Errorf("unknown match type %q", rule.MatchType)
	}
	if rule.Confidence < 0 || rule.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", rule.Confidence)
	}
	if rule.EntityID == "" && rule.EntityName == "" {
		return errors.New("rule must name an entity")
	}
	if rule.MatchType == models.RuleMatchRegex {
		if _, err := compileRegex(rule.DescriptionPattern); err != nil {
			return err
		}
	}
	return nil
}

// RuleID returns the deterministic id of the rule for pattern and matchType.
func RuleID(matchType models.RuleMatchType, pattern string) string {
	key := string(matchType) + ":" + strings.ToUpper(strings.TrimSpace(pattern))
	return uuid.NewSHA1(ruleNamespace, []byte(key)).String()
}

// Learn derives an exact correction rule from an operator confirmation.
func Learn(txn models.ConfirmedTransaction, now time.Time) models.CorrectionRule {
	pattern := strings.TrimSpace(txn.Description)
	rule := models.CorrectionRule{
		ID:                 RuleID(models.RuleMatchExact, pattern),
		DescriptionPattern: pattern,
		MatchType:          models.RuleMatchExact,
		EntityID:           txn.EntityID,
		EntityName:         txn.EntityName,
		TransactionType:    TransactionTypeIncome,
		Confidence:         1.0,
		CreatedAt:          now.UTC(),
	}
	if txn.IsExpense() {
		rule.TransactionType = TransactionTypeExpense
	}
	if txn.Location != "" {
		location := txn.Location
		rule.Location = &location
	}
	online := txn.Online
	rule.Online = &online
	return rule
}
