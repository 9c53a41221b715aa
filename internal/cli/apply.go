package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terrane-io/terrane/internal/engine"
	"github.com/terrane-io/terrane/internal/state"
)

var (
	applyAutoApprove bool
	applyParallelism int
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Reconcile declared resources with recorded state",
	Long: `Computes a plan and executes it. Independent resources are applied
concurrently; a resource is only applied after everything it references
has been applied. Each result is recorded before dependents start, so
an interrupted run can resume from recorded state.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of the plan")
	applyCmd.Flags().IntVar(&applyParallelism, "parallelism", 0, "Maximum concurrent operations (0 for the default)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f, graph, err := loadValidatedGraph()
	if err != nil {
		return err
	}

	prov, err := selectedProvider()
	if err != nil {
		return err
	}

	store, err := state.Open(ctx, f.State, statePath)
	if err != nil {
		return err
	}
	if err := store.Lock(); err != nil {
		return err
	}
	defer store.Unlock()

	records, err := store.Load(ctx)
	if err != nil {
		return err
	}

	plan := engine.CreatePlan(graph, records)
	if plan.Empty() {
		fmt.Println("No changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("Terrane will perform the following actions:")
	renderPlan(plan, graph)
	renderPlanSummary(plan)

	if !applyAutoApprove {
		if !confirm("Do you want to perform these actions?") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d operation(s)...\n\n", len(plan.Operations))

	result, err := engine.Apply(ctx, plan, graph, records, prov, store, engine.ApplyOptions{
		Parallelism: applyParallelism,
		Callback:    printEvent,
	})
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}

	renderRunResult(result)
	return runOutcomeError(result)
}
