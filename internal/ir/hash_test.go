package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecHash_Stable(t *testing.T) {
	a := &Declaration{ID: "db", Kind: KindManagedDatabase, Spec: map[string]any{
		"engine":  "postgres",
		"network": Ref{Target: "net", Attr: "id"},
		"size":    "small",
	}}
	b := &Declaration{ID: "db", Kind: KindManagedDatabase, Spec: map[string]any{
		"size":    "small",
		"network": Ref{Target: "net", Attr: "id"},
		"engine":  "postgres",
	}}

	// Map insertion order must not influence the hash.
	require.Equal(t, SpecHash(a), SpecHash(b))
	for i := 0; i < 10; i++ {
		assert.Equal(t, SpecHash(a), SpecHash(a))
	}
}

func TestSpecHash_SensitiveToChanges(t *testing.T) {
	base := &Declaration{ID: "db", Kind: KindManagedDatabase, Spec: map[string]any{"engine": "postgres"}}

	changedSpec := &Declaration{ID: "db", Kind: KindManagedDatabase, Spec: map[string]any{"engine": "mysql"}}
	assert.NotEqual(t, SpecHash(base), SpecHash(changedSpec))

	changedKind := &Declaration{ID: "db", Kind: KindStorageBucket, Spec: map[string]any{"engine": "postgres"}}
	assert.NotEqual(t, SpecHash(base), SpecHash(changedKind))

	// The id is not part of the hash; renaming a declaration without
	// changing its content hashes the same.
	renamed := &Declaration{ID: "db2", Kind: KindManagedDatabase, Spec: map[string]any{"engine": "postgres"}}
	assert.Equal(t, SpecHash(base), SpecHash(renamed))
}

func TestSpecHash_RefStaysSymbolic(t *testing.T) {
	withRef := &Declaration{ID: "svc", Kind: KindComputeService, Spec: map[string]any{
		"url": Ref{Target: "db", Attr: "connection"},
	}}
	otherAttr := &Declaration{ID: "svc", Kind: KindComputeService, Spec: map[string]any{
		"url": Ref{Target: "db", Attr: "endpoint"},
	}}
	assert.NotEqual(t, SpecHash(withRef), SpecHash(otherAttr))
}
