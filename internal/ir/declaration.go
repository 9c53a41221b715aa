package ir

// Declaration describes a single desired resource, independent of any
// provider-specific schema.
type Declaration struct {
	ID        string         `yaml:"id" json:"id"`
	Kind      Kind           `yaml:"type" json:"type"`
	Spec      map[string]any `yaml:"spec" json:"spec"`
	DependsOn []string       `yaml:"depends_on" json:"dependsOn,omitempty"`
}

// DeclarationSet is the full desired state for one run. It is supplied
// fresh each run and treated as immutable while the run executes.
type DeclarationSet struct {
	Declarations []*Declaration    `yaml:"declarations" json:"declarations"`
	Parameters   map[string]string `yaml:"parameters" json:"parameters,omitempty"`
}
