// Package config loads declaration sets from YAML files. The loader is
// the only place raw configuration syntax is interpreted: references
// are written as explicit {$ref: id, attr: path} mappings and converted
// into typed values here, so the engine never infers dependencies from
// strings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/state"
)

// File is the top-level shape of a terrane configuration file.
type File struct {
	State        *state.Config     `yaml:"state,omitempty"`
	Declarations []*ir.Declaration `yaml:"declarations"`
	Parameters   map[string]string `yaml:"parameters,omitempty"`
}

// Load reads and parses a configuration file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	f, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes YAML configuration and rewrites reference mappings into
// typed ir.Ref values.
func Parse(raw []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}

	for _, d := range f.Declarations {
		spec, err := convertValue(d.Spec)
		if err != nil {
			return nil, fmt.Errorf("declaration %q: %w", d.ID, err)
		}
		if spec == nil {
			d.Spec = map[string]any{}
			continue
		}
		d.Spec = spec.(map[string]any)
	}

	return &f, nil
}

// DeclarationSet returns the desired state carried by the file.
func (f *File) DeclarationSet() *ir.DeclarationSet {
	return &ir.DeclarationSet{
		Declarations: f.Declarations,
		Parameters:   f.Parameters,
	}
}

// convertValue normalizes decoded YAML values and converts reference
// mappings. A map is a reference iff it carries the "$ref" key; such a
// map must hold exactly {$ref, attr} with string values.
func convertValue(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if rawRef, ok := val["$ref"]; ok {
			return convertRef(val, rawRef)
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			converted, err := convertValue(elem)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			converted, err := convertValue(elem)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return val, nil
	}
}

func convertRef(m map[string]any, rawRef any) (any, error) {
	target, ok := rawRef.(string)
	if !ok || target == "" {
		return nil, fmt.Errorf("$ref must be a non-empty string, got %v", rawRef)
	}
	attr, _ := m["attr"].(string)
	if attr == "" {
		attr = "id"
	}
	if len(m) > 2 {
		return nil, fmt.Errorf("reference to %q carries extra keys besides $ref and attr", target)
	}
	return ir.Ref{Target: target, Attr: attr}, nil
}
