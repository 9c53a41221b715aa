package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/terrane-io/terrane/internal/ir"
)

// Graph is the dependency graph induced by a declaration set. An edge
// A→B exists iff A's spec references an attribute of B, or A lists B in
// depends_on. The graph is always acyclic; construction fails with a
// CycleError otherwise.
type Graph struct {
	decls      map[string]*ir.Declaration
	deps       map[string][]string
	dependents map[string][]string
	order      []string
}

// BuildGraph constructs the dependency graph for a validated
// declaration set and computes a deterministic topological order.
func BuildGraph(set *ir.DeclarationSet) (*Graph, error) {
	g := &Graph{
		decls:      make(map[string]*ir.Declaration, len(set.Declarations)),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}

	for _, d := range set.Declarations {
		g.decls[d.ID] = d
	}

	for _, d := range set.Declarations {
		seen := make(map[string]bool)
		var edges []string
		for _, ref := range ir.SpecRefs(d.Spec) {
			if ref.Target != d.ID && !seen[ref.Target] {
				seen[ref.Target] = true
				edges = append(edges, ref.Target)
			}
		}
		for _, dep := range d.DependsOn {
			if dep != d.ID && !seen[dep] {
				seen[dep] = true
				edges = append(edges, dep)
			}
		}
		sort.Strings(edges)
		g.deps[d.ID] = edges
		for _, dep := range edges {
			g.dependents[dep] = append(g.dependents[dep], d.ID)
		}
	}
	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	// Self-references close the shortest possible loop; report them the
	// same way as longer cycles.
	for _, d := range set.Declarations {
		for _, ref := range ir.SpecRefs(d.Spec) {
			if ref.Target == d.ID {
				return nil, &CycleError{Cycle: []string{d.ID, d.ID}}
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{Cycle: cycle}
	}

	g.order = g.topoSort()
	return g, nil
}

// findCycle runs a depth-first traversal with a recursion stack,
// visiting nodes and edges in id order so the reported cycle is
// identical across runs. The returned slice runs from the first
// repeated node to the edge that closes the loop.
func (g *Graph) findCycle() []string {
	ids := g.sortedIDs()
	visited := make(map[string]bool, len(ids))
	onStack := make(map[string]bool, len(ids))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, dep := range g.deps[id] {
			if onStack[dep] {
				for i, s := range stack {
					if s == dep {
						cycle := append(append([]string{}, stack[i:]...), dep)
						return cycle
					}
				}
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		onStack[id] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, id := range ids {
		if !visited[id] {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// topoSort runs Kahn's algorithm with an id-sorted ready set, so the
// creation order is deterministic for a given declaration set. Every
// dependency precedes its dependents.
func (g *Graph) topoSort() []string {
	remaining := make(map[string]int, len(g.decls))
	for id, deps := range g.deps {
		remaining[id] = len(deps)
	}

	var ready []string
	for _, id := range g.sortedIDs() {
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(g.decls))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var released []string
		for _, dependent := range g.dependents[id] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				released = append(released, dependent)
			}
		}
		ready = append(ready, released...)
		sort.Strings(ready)
	}

	return order
}

// Order returns declaration ids in creation order.
func (g *Graph) Order() []string {
	return g.order
}

// ReverseOrder returns declaration ids in destruction order, the exact
// reverse of the creation order.
func (g *Graph) ReverseOrder() []string {
	rev := make([]string, len(g.order))
	for i, id := range g.order {
		rev[len(g.order)-1-i] = id
	}
	return rev
}

// Declaration returns the declaration for id, or nil.
func (g *Graph) Declaration(id string) *ir.Declaration {
	return g.decls[id]
}

// Dependencies returns the ids id depends on, sorted.
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Dependents returns the ids depending on id, sorted.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.decls))
	for id := range g.decls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BuildPriorGraph reconstructs the dependency graph of the last applied
// run from persisted state records. Used to order deletes: dependents
// are destroyed before their dependencies.
func BuildPriorGraph(records map[string]*ir.StateRecord) *Graph {
	g := &Graph{
		decls:      make(map[string]*ir.Declaration, len(records)),
		deps:       make(map[string][]string),
		dependents: make(map[string][]string),
	}

	for id, rec := range records {
		g.decls[id] = &ir.Declaration{ID: id, Kind: rec.Kind}
	}
	for id, rec := range records {
		var edges []string
		for _, dep := range rec.Dependencies {
			if _, ok := records[dep]; ok {
				edges = append(edges, dep)
			}
		}
		sort.Strings(edges)
		g.deps[id] = edges
		for _, dep := range edges {
			g.dependents[dep] = append(g.dependents[dep], id)
		}
	}
	for id := range g.dependents {
		sort.Strings(g.dependents[id])
	}

	// State was applied from an acyclic graph, so the reconstruction is
	// acyclic too; a corrupted store would surface as a short order.
	g.order = g.topoSort()
	return g
}

// ToDOT renders the graph for Graphviz.
func (g *Graph) ToDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph resources {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n")
	for _, id := range g.sortedIDs() {
		d := g.decls[id]
		label := id
		if d != nil && d.Kind != "" {
			label = fmt.Sprintf("%s\\n%s", id, d.Kind)
		}
		sb.WriteString(fmt.Sprintf("  %q [label=%q];\n", id, label))
	}
	for _, id := range g.sortedIDs() {
		for _, dep := range g.deps[id] {
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", id, dep))
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
