package ir

import "time"

// RecordStatus is the durable status of a declaration in the state store.
type RecordStatus string

const (
	StatusPending   RecordStatus = "pending"
	StatusApplied   RecordStatus = "applied"
	StatusFailed    RecordStatus = "failed"
	StatusDestroyed RecordStatus = "destroyed"
)

// StateRecord is the persisted record of the last reconciliation of one
// declaration. Invariant: a record with status Applied always carries a
// non-empty ProviderID and an attribute set sufficient to satisfy any
// other declaration's references to it.
type StateRecord struct {
	Kind         Kind           `json:"type"`
	SpecHash     string         `json:"specHash"`
	ProviderID   string         `json:"providerId,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Status       RecordStatus   `json:"status"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}
