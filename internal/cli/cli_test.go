package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrane-io/terrane/internal/engine"
	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/state"
)

const stackConfig = `
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
      network:
        $ref: net
  - id: svc
    type: compute-service
    spec:
      name: app
      image: nginx:1.27
      env:
        DB_URL:
          $ref: db
          attr: connection
`

// useWorkspace points the package-level flag variables at a temp
// workspace holding the given configuration.
func useWorkspace(t *testing.T, cfg string) {
	t.Helper()
	dir := t.TempDir()

	oldCfg, oldState, oldProv := cfgPath, statePath, providerName
	t.Cleanup(func() {
		cfgPath, statePath, providerName = oldCfg, oldState, oldProv
	})

	cfgPath = filepath.Join(dir, "terrane.yaml")
	statePath = filepath.Join(dir, ".terrane", "state.json")
	providerName = "memory"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	// The run handlers are invoked directly rather than through Execute,
	// so the commands never receive a context from cobra; give them one.
	for _, cmd := range []*cobra.Command{validateCmd, planCmd, applyCmd, destroyCmd, refreshCmd} {
		cmd.SetContext(context.Background())
	}
}

func TestApplyThenDestroy(t *testing.T) {
	useWorkspace(t, stackConfig)

	applyAutoApprove = true
	require.NoError(t, runValidate(validateCmd, nil))
	require.NoError(t, runApply(applyCmd, nil))

	records, err := state.NewFileStore(statePath).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	for id, rec := range records {
		assert.Equal(t, ir.StatusApplied, rec.Status, id)
	}

	// A second apply finds nothing to do.
	require.NoError(t, runApply(applyCmd, nil))

	destroyAutoApprove = true
	require.NoError(t, runDestroy(destroyCmd, nil))

	records, err = state.NewFileStore(statePath).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	// Destroying an empty state is a no-op.
	require.NoError(t, runDestroy(destroyCmd, nil))
}

func TestDestroyAndRefreshUseConfiguredBackend(t *testing.T) {
	useWorkspace(t, `
state:
  type: vault
declarations:
  - id: net
    type: network
    spec:
      name: app-net
`)

	// Both commands must open the backend the configuration names, not
	// silently fall back to the local file store. An unrecognized type
	// surfaces as an open error before any state is read.
	err := runDestroy(destroyCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state store type")

	err = runRefresh(refreshCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown state store type")
}

func TestPlanDoesNotTouchState(t *testing.T) {
	useWorkspace(t, stackConfig)

	require.NoError(t, runPlan(planCmd, nil))

	_, err := os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))
}

func TestValidate_ReportsCycle(t *testing.T) {
	useWorkspace(t, `
declarations:
  - id: a
    type: network
    spec:
      peer:
        $ref: b
  - id: b
    type: network
    spec:
      peer:
        $ref: a
`)

	err := runValidate(validateCmd, nil)
	require.Error(t, err)
	assert.Equal(t, ExitInvalid, ExitCode(err))
}

func TestGraphCommand(t *testing.T) {
	useWorkspace(t, stackConfig)
	assert.NoError(t, runGraph(graphCmd, nil))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitInvalid, ExitCode(&engine.ValidationError{ID: "x", Cause: "bad"}))
	assert.Equal(t, ExitInvalid, ExitCode(&engine.CycleError{Cycle: []string{"a", "a"}}))
	assert.Equal(t, ExitCancelled, ExitCode(context.Canceled))

	failed := &runFailedError{result: &ir.RunResult{Outcome: ir.RunFailed, Failed: 1}}
	assert.Equal(t, ExitRunFailed, ExitCode(failed))

	cancelled := &runFailedError{result: &ir.RunResult{Outcome: ir.RunCancelled}}
	assert.Equal(t, ExitCancelled, ExitCode(cancelled))
}
