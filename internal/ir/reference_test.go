package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpecRefs_CollectsNestedRefs(t *testing.T) {
	spec := map[string]any{
		"network": Ref{Target: "net", Attr: "id"},
		"env": map[string]any{
			"DB_URL": Ref{Target: "db", Attr: "connection"},
		},
		"backends": []any{
			map[string]any{"target": &Ref{Target: "db", Attr: "endpoint"}},
		},
		"replicas": 3,
		"name":     "svc",
	}

	refs := SpecRefs(spec)
	assert.Equal(t, []Ref{
		{Target: "db", Attr: "connection"},
		{Target: "db", Attr: "endpoint"},
		{Target: "net", Attr: "id"},
	}, refs)
}

func TestSpecRefs_NoRefs(t *testing.T) {
	assert.Empty(t, SpecRefs(map[string]any{"cidr": "10.0.0.0/16"}))
	assert.Empty(t, SpecRefs(nil))
}

func TestKindExportsAttr(t *testing.T) {
	assert.True(t, KindExportsAttr(KindManagedDatabase, "connection"))
	assert.True(t, KindExportsAttr(KindManagedDatabase, "connection.pool.size"))
	assert.False(t, KindExportsAttr(KindManagedDatabase, "dns"))
	assert.False(t, KindExportsAttr(KindNetwork, ""))
}

func TestKnownKind(t *testing.T) {
	assert.True(t, KnownKind(KindNetwork))
	assert.True(t, KnownKind(KindBucketPolicy))
	assert.False(t, KnownKind("warp-drive"))
}
