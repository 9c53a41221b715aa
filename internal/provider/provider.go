// Package provider defines the capability contract the reconciler uses
// to materialize resources, and a registry of named implementations.
// The engine never interprets the domain meaning of spec attributes; a
// provider receives a fully resolved spec and returns an identifier and
// output attributes.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/terrane-io/terrane/internal/ir"
)

// Interface is the per-resource capability contract. Implementations
// exist per backing system (in-memory, docker, a real cloud); the
// engine dispatches on the declaration's kind.
type Interface interface {
	// Create materializes a new resource and returns its provider-assigned
	// id plus the output attributes for the kind's schema.
	Create(ctx context.Context, kind ir.Kind, spec map[string]any) (string, map[string]any, error)

	// Update reconciles an existing resource to the resolved spec and
	// returns its refreshed output attributes.
	Update(ctx context.Context, kind ir.Kind, providerID string, spec map[string]any) (map[string]any, error)

	// Delete removes the resource. Deleting an already-absent resource
	// is not an error.
	Delete(ctx context.Context, kind ir.Kind, providerID string) error

	// Read fetches the current output attributes, for drift detection.
	// Returns ErrNotFound if the resource no longer exists.
	Read(ctx context.Context, kind ir.Kind, providerID string) (map[string]any, error)
}

// ErrNotFound is returned by Read when the resource is gone.
var ErrNotFound = errors.New("resource not found")

// Error is a classified provider failure. Retryable failures are
// retried with backoff by the executor; everything else fails the
// declaration immediately.
type Error struct {
	Retryable bool
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewRetryable wraps err as a transient provider failure.
func NewRetryable(message string, err error) *Error {
	return &Error{Retryable: true, Message: message, Err: err}
}

// NewFatal wraps err as a non-retryable provider failure.
func NewFatal(message string, err error) *Error {
	return &Error{Retryable: false, Message: message, Err: err}
}

// IsRetryable reports whether err carries a retryable classification.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}
