package engine

import (
	"fmt"
	"sort"

	"github.com/terrane-io/terrane/internal/ir"
)

// Validate checks a declaration set before anything touches a provider:
// every kind must be known, ids must be unique, and every reference
// must name an existing declaration and a legal output attribute of its
// kind. The first violation in deterministic (id-sorted) order is
// returned.
func Validate(set *ir.DeclarationSet) error {
	byID := make(map[string]*ir.Declaration, len(set.Declarations))
	for _, d := range set.Declarations {
		if d.ID == "" {
			return &ValidationError{ID: d.ID, Cause: "empty declaration id"}
		}
		if _, dup := byID[d.ID]; dup {
			return &ValidationError{ID: d.ID, Cause: "duplicate declaration id"}
		}
		byID[d.ID] = d
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d := byID[id]
		if !ir.KnownKind(d.Kind) {
			return &ValidationError{ID: id, Cause: fmt.Sprintf("unknown resource type %q", d.Kind)}
		}
		for _, ref := range ir.SpecRefs(d.Spec) {
			target, ok := byID[ref.Target]
			if !ok {
				return &ValidationError{ID: id, Cause: fmt.Sprintf("reference to undeclared resource %q", ref.Target)}
			}
			if !ir.KindExportsAttr(target.Kind, ref.Attr) {
				return &ValidationError{ID: id, Cause: fmt.Sprintf(
					"reference to %q names attribute %q, which type %q does not export",
					ref.Target, ref.Attr, target.Kind)}
			}
		}
		for _, dep := range d.DependsOn {
			if _, ok := byID[dep]; !ok {
				return &ValidationError{ID: id, Cause: fmt.Sprintf("depends_on names undeclared resource %q", dep)}
			}
		}
	}

	return nil
}
