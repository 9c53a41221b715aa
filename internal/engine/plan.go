package engine

import (
	"time"

	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/logging"
)

// CreatePlan diffs the desired declaration set (as a built graph)
// against the last-known state records and produces an ordered plan.
//
// Per declaration: no record, or a record whose last attempt failed,
// yields a create. An applied record whose spec hash differs from the
// current declaration yields an update. Matching hashes yield no
// operation unless a dependency is itself changing this run, in which
// case the declaration's resolved inputs may change and it is planned
// for update. Records whose ids are absent from the declaration set
// yield deletes, ordered by the reverse topological order of the prior
// graph so dependents are destroyed before their dependencies.
func CreatePlan(graph *Graph, records map[string]*ir.StateRecord) *ir.Plan {
	plan := &ir.Plan{CreatedAt: time.Now().UTC()}
	ops := make(map[string]*ir.Operation)

	// Deletes first: resources no longer declared release their
	// identifiers before anything that might reuse them.
	prior := BuildPriorGraph(records)
	stale := make(map[string]bool)
	for id := range records {
		if graph.Declaration(id) == nil {
			stale[id] = true
		}
	}
	for _, id := range prior.ReverseOrder() {
		if !stale[id] {
			continue
		}
		op := &ir.Operation{Kind: ir.OpDelete, DeclarationID: id, Reason: "no longer declared"}
		for _, dependent := range prior.Dependents(id) {
			if stale[dependent] {
				op.After = append(op.After, dependent)
			}
		}
		ops[id] = op
		plan.Operations = append(plan.Operations, op)
		plan.Summary.Delete++
	}

	for _, id := range graph.Order() {
		d := graph.Declaration(id)
		rec := records[id]

		var kind ir.OpKind
		var reason string
		switch {
		case rec == nil:
			kind, reason = ir.OpCreate, "not in state"
		case rec.Status != ir.StatusApplied:
			kind, reason = ir.OpCreate, "previous attempt did not complete"
		case rec.SpecHash != ir.SpecHash(d):
			kind, reason = ir.OpUpdate, "spec changed"
		case dependencyChanging(graph, ops, id):
			kind, reason = ir.OpUpdate, "dependency changing"
		default:
			plan.Summary.NoOp++
			continue
		}

		op := &ir.Operation{Kind: kind, DeclarationID: id, Reason: reason}
		for _, dep := range graph.Dependencies(id) {
			if prev, ok := ops[dep]; ok && prev.Kind != ir.OpDelete {
				op.After = append(op.After, dep)
			}
		}
		ops[id] = op
		plan.Operations = append(plan.Operations, op)
		if kind == ir.OpCreate {
			plan.Summary.Create++
		} else {
			plan.Summary.Update++
		}
	}

	logging.Debug("plan computed",
		"create", plan.Summary.Create,
		"update", plan.Summary.Update,
		"delete", plan.Summary.Delete,
		"noop", plan.Summary.NoOp)

	return plan
}

// dependencyChanging reports whether any dependency of id already has a
// create or update operation in this plan. Graph order guarantees
// dependencies are planned before their dependents.
func dependencyChanging(graph *Graph, ops map[string]*ir.Operation, id string) bool {
	for _, dep := range graph.Dependencies(id) {
		if op, ok := ops[dep]; ok && op.Kind != ir.OpDelete {
			return true
		}
	}
	return false
}
