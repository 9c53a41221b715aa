package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-io/terrane/internal/ir"
)

func applied(d *ir.Declaration, deps ...string) *ir.StateRecord {
	return &ir.StateRecord{
		Kind:         d.Kind,
		SpecHash:     ir.SpecHash(d),
		ProviderID:   "prov-" + d.ID,
		Status:       ir.StatusApplied,
		Dependencies: deps,
	}
}

func webStack() *ir.DeclarationSet {
	return set(
		decl("net", ir.KindNetwork, map[string]any{"cidr": "10.0.0.0/16"}),
		decl("db", ir.KindManagedDatabase, map[string]any{
			"network": ir.Ref{Target: "net", Attr: "id"},
			"engine":  "postgres",
		}),
		decl("svc", ir.KindComputeService, map[string]any{
			"network": ir.Ref{Target: "net", Attr: "id"},
			"env": map[string]any{
				"DB_URL": ir.Ref{Target: "db", Attr: "connection"},
			},
		}),
	)
}

func TestCreatePlan_FreshStack(t *testing.T) {
	g, err := BuildGraph(webStack())
	require.NoError(t, err)

	plan := CreatePlan(g, nil)
	require.Len(t, plan.Operations, 3)
	assert.Equal(t, 3, plan.Summary.Create)

	// Creation order follows the graph, and each operation waits on the
	// operations of its dependencies.
	assert.Equal(t, "net", plan.Operations[0].DeclarationID)
	assert.Equal(t, "db", plan.Operations[1].DeclarationID)
	assert.Equal(t, "svc", plan.Operations[2].DeclarationID)
	for _, op := range plan.Operations {
		assert.Equal(t, ir.OpCreate, op.Kind)
		assert.Equal(t, "not in state", op.Reason)
	}
	assert.Empty(t, plan.Operations[0].After)
	assert.Equal(t, []string{"net"}, plan.Operations[1].After)
	assert.Equal(t, []string{"db", "net"}, plan.Operations[2].After)
}

func TestCreatePlan_Idempotent(t *testing.T) {
	stack := webStack()
	g, err := BuildGraph(stack)
	require.NoError(t, err)

	records := map[string]*ir.StateRecord{
		"net": applied(stack.Declarations[0]),
		"db":  applied(stack.Declarations[1], "net"),
		"svc": applied(stack.Declarations[2], "db", "net"),
	}

	plan := CreatePlan(g, records)
	assert.True(t, plan.Empty())
	assert.Equal(t, 3, plan.Summary.NoOp)
}

func TestCreatePlan_SpecChangePropagates(t *testing.T) {
	stack := webStack()
	g, err := BuildGraph(stack)
	require.NoError(t, err)

	records := map[string]*ir.StateRecord{
		"net": applied(stack.Declarations[0]),
		"db":  applied(stack.Declarations[1], "net"),
		"svc": applied(stack.Declarations[2], "db", "net"),
	}

	// Change the database spec. The service references its connection
	// string, so it is planned too; the network is untouched.
	stack.Declarations[1].Spec["engine"] = "mysql"

	plan := CreatePlan(g, records)
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, 2, plan.Summary.Update)
	assert.Equal(t, 1, plan.Summary.NoOp)

	dbOp := plan.Operation("db")
	require.NotNil(t, dbOp)
	assert.Equal(t, ir.OpUpdate, dbOp.Kind)
	assert.Equal(t, "spec changed", dbOp.Reason)
	assert.Empty(t, dbOp.After)

	svcOp := plan.Operation("svc")
	require.NotNil(t, svcOp)
	assert.Equal(t, ir.OpUpdate, svcOp.Kind)
	assert.Equal(t, "dependency changing", svcOp.Reason)
	assert.Equal(t, []string{"db"}, svcOp.After)

	assert.Nil(t, plan.Operation("net"))
}

func TestCreatePlan_SingleDelete(t *testing.T) {
	stack := webStack()
	g, err := BuildGraph(stack)
	require.NoError(t, err)

	records := map[string]*ir.StateRecord{
		"net": applied(stack.Declarations[0]),
		"db":  applied(stack.Declarations[1], "net"),
		"svc": applied(stack.Declarations[2], "db", "net"),
		"old": {Kind: ir.KindLogGroup, SpecHash: "x", ProviderID: "prov-old", Status: ir.StatusApplied},
	}

	plan := CreatePlan(g, records)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, 1, plan.Summary.Delete)

	op := plan.Operations[0]
	assert.Equal(t, ir.OpDelete, op.Kind)
	assert.Equal(t, "old", op.DeclarationID)
	assert.Equal(t, "no longer declared", op.Reason)
}

func TestCreatePlan_DeleteOrderIsReversed(t *testing.T) {
	g, err := BuildGraph(set())
	require.NoError(t, err)

	// base was applied first, leaf depends on it. Destruction must
	// remove leaf before base.
	records := map[string]*ir.StateRecord{
		"base": {Kind: ir.KindNetwork, Status: ir.StatusApplied, ProviderID: "p1"},
		"leaf": {Kind: ir.KindComputeService, Status: ir.StatusApplied, ProviderID: "p2", Dependencies: []string{"base"}},
	}

	plan := CreatePlan(g, records)
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, "leaf", plan.Operations[0].DeclarationID)
	assert.Equal(t, "base", plan.Operations[1].DeclarationID)

	// The base delete waits on the leaf delete.
	assert.Empty(t, plan.Operations[0].After)
	assert.Equal(t, []string{"leaf"}, plan.Operations[1].After)
}

func TestCreatePlan_DeletesPrecedeCreates(t *testing.T) {
	g, err := BuildGraph(set(decl("new", ir.KindNetwork, nil)))
	require.NoError(t, err)

	records := map[string]*ir.StateRecord{
		"old": {Kind: ir.KindNetwork, Status: ir.StatusApplied, ProviderID: "p1"},
	}

	plan := CreatePlan(g, records)
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, ir.OpDelete, plan.Operations[0].Kind)
	assert.Equal(t, ir.OpCreate, plan.Operations[1].Kind)
}

func TestCreatePlan_ResumesAfterCrash(t *testing.T) {
	stack := webStack()
	g, err := BuildGraph(stack)
	require.NoError(t, err)

	// A previous run persisted net, recorded db as failed mid-flight,
	// and never reached svc. The next plan redoes exactly the
	// unfinished work.
	records := map[string]*ir.StateRecord{
		"net": applied(stack.Declarations[0]),
		"db":  {Kind: ir.KindManagedDatabase, Status: ir.StatusFailed, ProviderID: "prov-db"},
	}

	plan := CreatePlan(g, records)
	require.Len(t, plan.Operations, 2)

	dbOp := plan.Operation("db")
	require.NotNil(t, dbOp)
	assert.Equal(t, ir.OpCreate, dbOp.Kind)
	assert.Equal(t, "previous attempt did not complete", dbOp.Reason)

	svcOp := plan.Operation("svc")
	require.NotNil(t, svcOp)
	assert.Equal(t, ir.OpCreate, svcOp.Kind)
	assert.Nil(t, plan.Operation("net"))
}
