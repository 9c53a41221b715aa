package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/terrane-io/terrane/internal/engine"
	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/state"
)

var (
	destroyAutoApprove bool
	destroyParallelism int
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Delete every resource recorded in state",
	Long: `Plans against an empty declaration set, so every recorded resource is
deleted in reverse dependency order: nothing is deleted before the
resources that depend on it.`,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval")
	destroyCmd.Flags().IntVar(&destroyParallelism, "parallelism", 0, "Maximum concurrent operations (0 for the default)")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prov, err := selectedProvider()
	if err != nil {
		return err
	}

	backend, err := stateConfig()
	if err != nil {
		return err
	}
	store, err := state.Open(ctx, backend, statePath)
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
	if len(records) == 0 {
		fmt.Println("Nothing to destroy. State is empty.")
		return nil
	}

	empty, err := engine.BuildGraph(&ir.DeclarationSet{})
	if err != nil {
		return err
	}
	plan := engine.CreatePlan(empty, records)

	fmt.Println("Terrane will destroy the following resources:")
	renderPlan(plan, empty)
	renderPlanSummary(plan)

	if !destroyAutoApprove {
		if !confirm("Do you really want to destroy all resources?") {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	fmt.Printf("\nDestroying %d resource(s)...\n\n", len(plan.Operations))

	result, err := engine.Apply(ctx, plan, empty, records, prov, store, engine.ApplyOptions{
		Parallelism: destroyParallelism,
		Callback:    printEvent,
	})
	if err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	renderRunResult(result)
	return runOutcomeError(result)
}
