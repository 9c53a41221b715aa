package ir

import "sort"

// Ref points at another declaration's output attribute. The value is
// only known after the target reaches Applied, so any spec value
// containing a Ref is computed and cannot be sent to a provider until
// every reference in it resolves.
type Ref struct {
	Target string `json:"$ref"`
	Attr   string `json:"attr"`
}

// SpecRefs walks a spec value and collects every embedded Ref, sorted
// by target id then attribute for deterministic edge ordering.
func SpecRefs(v any) []Ref {
	var refs []Ref
	collectRefs(v, &refs)
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Target != refs[j].Target {
			return refs[i].Target < refs[j].Target
		}
		return refs[i].Attr < refs[j].Attr
	})
	return refs
}

func collectRefs(v any, out *[]Ref) {
	switch val := v.(type) {
	case Ref:
		*out = append(*out, val)
	case *Ref:
		*out = append(*out, *val)
	case map[string]any:
		for _, e := range val {
			collectRefs(e, out)
		}
	case []any:
		for _, e := range val {
			collectRefs(e, out)
		}
	}
}
