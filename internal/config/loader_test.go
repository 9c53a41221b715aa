package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-io/terrane/internal/ir"
)

const sampleConfig = `
state:
  type: file
parameters:
  environment: staging
declarations:
  - id: net
    type: network
    spec:
      name: app-net
      cidr: 10.0.0.0/16
  - id: db
    type: managed-database
    spec:
      name: app-db
      engine: postgres
      network:
        $ref: net
  - id: svc
    type: compute-service
    depends_on: [db]
    spec:
      name: app
      image: nginx:1.27
      env:
        DB_URL:
          $ref: db
          attr: connection
      backends:
        - $ref: db
          attr: endpoint
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	require.Len(t, f.Declarations, 3)
	assert.Equal(t, "file", f.State.Type)
	assert.Equal(t, "staging", f.Parameters["environment"])

	net := f.Declarations[0]
	assert.Equal(t, "net", net.ID)
	assert.Equal(t, ir.KindNetwork, net.Kind)
	assert.Equal(t, "10.0.0.0/16", net.Spec["cidr"])

	// A bare $ref defaults to the id attribute.
	db := f.Declarations[1]
	assert.Equal(t, ir.Ref{Target: "net", Attr: "id"}, db.Spec["network"])

	// Refs convert inside nested maps and lists.
	svc := f.Declarations[2]
	assert.Equal(t, []string{"db"}, svc.DependsOn)
	env := svc.Spec["env"].(map[string]any)
	assert.Equal(t, ir.Ref{Target: "db", Attr: "connection"}, env["DB_URL"])
	backends := svc.Spec["backends"].([]any)
	assert.Equal(t, ir.Ref{Target: "db", Attr: "endpoint"}, backends[0])
}

func TestParse_RefErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "non-string ref",
			yaml: "declarations:\n  - id: a\n    type: network\n    spec:\n      peer:\n        $ref: 42\n",
			want: "$ref must be a non-empty string",
		},
		{
			name: "empty ref",
			yaml: "declarations:\n  - id: a\n    type: network\n    spec:\n      peer:\n        $ref: \"\"\n",
			want: "$ref must be a non-empty string",
		},
		{
			name: "extra keys",
			yaml: "declarations:\n  - id: a\n    type: network\n    spec:\n      peer:\n        $ref: b\n        attr: id\n        extra: nope\n",
			want: "extra keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), `"a"`)
		})
	}
}

func TestParse_EmptySpec(t *testing.T) {
	f, err := Parse([]byte("declarations:\n  - id: a\n    type: alarm\n"))
	require.NoError(t, err)
	require.Len(t, f.Declarations, 1)
	assert.NotNil(t, f.Declarations[0].Spec)
	assert.Empty(t, f.Declarations[0].Spec)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "terrane.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.DeclarationSet().Declarations, 3)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("declarations: {not a list"), 0644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}
