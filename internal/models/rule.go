package models

import "time"

// RuleMatchType selects how a correction rule pattern is compared with a
// transaction description.
type RuleMatchType string

const (
	RuleMatchExact    RuleMatchType = "exact"
	RuleMatchContains RuleMatchType = "contains"
	RuleMatchRegex    RuleMatchType = "regex"
)

// Valid reports whether m is a known rule match type.
func (m RuleMatchType) Valid() bool {
	switch m {
	case RuleMatchExact, RuleMatchContains, RuleMatchRegex:
		return true
	}
	return false
}

// CorrectionRule is an operator-confirmed mapping from a description
// pattern to an entity.
type CorrectionRule struct {
	ID                 string        `json:"id" yaml:"id"`
	DescriptionPattern string        `json:"descriptionPattern" yaml:"description_pattern"`
	MatchType          RuleMatchType `json:"matchType" yaml:"match_type"`
	EntityID           string        `json:"entityId,omitempty" yaml:"entity_id,omitempty"`
	EntityName         string        `json:"entityName,omitempty" yaml:"entity_name,omitempty"`
	Location           *string       `json:"location,omitempty" yaml:"location,omitempty"`
	Online             *bool         `json:"online,omitempty" yaml:"online,omitempty"`
	TransactionType    string        `json:"transactionType,omitempty" yaml:"transaction_type,omitempty"`
	Confidence         float64       `json:"confidence" yaml:"confidence"`
	TimesApplied       int           `json:"timesApplied" yaml:"times_applied"`
	CreatedAt          time.Time     `json:"createdAt" yaml:"created_at"`
	LastUsedAt         *time.Time    `json:"lastUsedAt,omitempty" yaml:"last_used_at,omitempty"`
}
