// Package models defines the data structures shared by the import pipeline:
// canonical transactions, entities, correction rules, match results and
// import sessions.
package models

import (
	"github.com/shopspring/decimal"
)

// DateLayoutISO is the canonical transaction date layout.
const DateLayoutISO = "2006-01-02"

// RawTransaction is the canonical shape every bank transformer produces.
type RawTransaction struct {
	Date        string          `json:"date" yaml:"date"`
	Description string          `json:"description" yaml:"description"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Account     string          `json:"account" yaml:"account"`
	Location    string          `json:"location,omitempty" yaml:"location,omitempty"`
	Online      bool            `json:"online" yaml:"online"`
	RawRow      string          `json:"rawRow" yaml:"raw_row"`
	Checksum    string          `json:"checksum" yaml:"checksum"`
}

// IsExpense reports whether the transaction takes money out of the account.
func (t RawTransaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// ConfirmedTransaction is a transaction the operator has reviewed and
// resolved to an entity, ready to be committed.
type ConfirmedTransaction struct {
	RawTransaction
	EntityID   string    `json:"entityId" yaml:"entity_id"`
	EntityName string    `json:"entityName" yaml:"entity_name"`
	EntityURL  string    `json:"entityUrl" yaml:"entity_url"`
	MatchType  MatchType `json:"matchType,omitempty" yaml:"match_type,omitempty"`

	// SaveRule asks the commit phase to learn an exact correction rule from
	// this confirmation.
	SaveRule bool `json:"saveRule,omitempty" yaml:"save_rule,omitempty"`
}
