// Package state persists the durable record of the last successfully
// applied resource graph. Stores guarantee atomic per-key upserts, so a
// run interrupted between operations leaves a store consistent with
// everything actually applied.
package state

import (
	"context"

	"github.com/terrane-io/terrane/internal/ir"
)

// Store is the interface consumed by the planner and the executor.
type Store interface {
	// Load returns every persisted record, keyed by declaration id.
	Load(ctx context.Context) (map[string]*ir.StateRecord, error)

	// Save upserts the record for one declaration atomically.
	Save(ctx context.Context, id string, rec *ir.StateRecord) error

	// Delete removes the record after a successful delete operation.
	// Deleting an absent record is not an error.
	Delete(ctx context.Context, id string) error

	// Lock acquires an exclusive lock on the state.
	Lock() error

	// Unlock releases the lock on the state.
	Unlock() error
}

// Config selects and configures a store backend.
type Config struct {
	Type   string            `json:"type"` // "file" or "s3"
	Config map[string]string `json:"config"`
}
