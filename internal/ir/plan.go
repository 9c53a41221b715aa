package ir

import "time"

// OpKind is the kind of change an operation performs.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Operation is one executable step of a plan. After lists the
// declaration ids whose operations must reach terminal success before
// this one may start: dependencies for creates and updates, prior-graph
// dependents for deletes.
type Operation struct {
	Kind          OpKind   `json:"kind"`
	DeclarationID string   `json:"declarationId"`
	Reason        string   `json:"reason,omitempty"`
	After         []string `json:"after,omitempty"`
}

// Plan is an ordered, executable list of operations computed by diffing
// desired declarations against last-known state. The slice order is a
// valid topological order; operations without a path between them carry
// no ordering guarantee beyond their After sets.
type Plan struct {
	CreatedAt  time.Time    `json:"createdAt"`
	Operations []*Operation `json:"operations"`
	Summary    PlanSummary  `json:"summary"`
}

type PlanSummary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
	NoOp   int `json:"noop"`
}

// Empty reports whether the plan contains no operations.
func (p *Plan) Empty() bool {
	return len(p.Operations) == 0
}

// Operation returns the operation targeting id, or nil.
func (p *Plan) Operation(id string) *Operation {
	for _, op := range p.Operations {
		if op.DeclarationID == id {
			return op
		}
	}
	return nil
}
