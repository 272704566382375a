package models

// MatchType records how a transaction was resolved to an entity.
type MatchType string

const (
	MatchTypeAlias      MatchType = "alias"
	MatchTypeExact      MatchType = "exact"
	MatchTypePrefix     MatchType = "prefix"
	MatchTypeContains   MatchType = "contains"
	MatchTypeCorrection MatchType = "correction"
	MatchTypeAI         MatchType = "ai"
)

// MatchResult is the outcome of resolving a description to an entity.
type MatchResult struct {
	EntityName string    `json:"entityName"`
	EntityID   string    `json:"entityId"`
	MatchType  MatchType `json:"matchType"`
}
