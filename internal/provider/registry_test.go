package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-io/terrane/internal/ir"
)

type nopProvider struct{}

func (nopProvider) Create(ctx context.Context, kind ir.Kind, spec map[string]any) (string, map[string]any, error) {
	return "", nil, nil
}
func (nopProvider) Update(ctx context.Context, kind ir.Kind, id string, spec map[string]any) (map[string]any, error) {
	return nil, nil
}
func (nopProvider) Delete(ctx context.Context, kind ir.Kind, id string) error { return nil }
func (nopProvider) Read(ctx context.Context, kind ir.Kind, id string) (map[string]any, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("nop", nopProvider{})

	p, err := reg.Get("nop")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = reg.Get("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestErrorClassification(t *testing.T) {
	retryable := NewRetryable("throttled", errors.New("429"))
	assert.True(t, IsRetryable(retryable))
	assert.ErrorIs(t, retryable, retryable.Err)

	fatal := NewFatal("bad request", nil)
	assert.False(t, IsRetryable(fatal))

	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
