package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/terrane-io/terrane/internal/engine"
	"github.com/terrane-io/terrane/internal/state"
)

var planOutFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what an apply would change",
	Long: `Compares the declared configuration against recorded state and prints
the operations an apply would perform. Nothing is executed and no
provider is contacted.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write the plan as JSON to a file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	f, graph, err := loadValidatedGraph()
	if err != nil {
		return err
	}

	store, err := state.Open(ctx, f.State, statePath)
	if err != nil {
		return err
	}
	records, err := store.Load(ctx)
	if err != nil {
		return err
	}

	plan := engine.CreatePlan(graph, records)

	if plan.Empty() {
		fmt.Println("No changes. Infrastructure is up-to-date.")
	} else {
		fmt.Println("Terrane will perform the following actions:")
		renderPlan(plan, graph)
	}
	renderPlanSummary(plan)

	if planOutFile != "" {
		raw, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode plan: %w", err)
		}
		if err := os.WriteFile(planOutFile, raw, 0644); err != nil {
			return fmt.Errorf("failed to write plan file: %w", err)
		}
		fmt.Printf("\nPlan written to %s\n", planOutFile)
	}

	return nil
}
