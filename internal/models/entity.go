package models

import "time"

// Entity is a merchant or counterparty known to the registry.
type Entity struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	URL       string    `json:"url,omitempty" yaml:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}

// EntityLookup maps an entity display name to its stable identifier.
type EntityLookup map[string]string

// AliasTable maps an alias token, as it appears in statement text, to an
// entity display name.
type AliasTable map[string]string

// CreatedEntity is returned by entity creation.
type CreatedEntity struct {
	EntityID   string `json:"entityId"`
	EntityName string `json:"entityName"`
	EntityURL  string `json:"entityUrl"`
}
