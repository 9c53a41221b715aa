package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terrane-io/terrane/internal/engine"
	"github.com/terrane-io/terrane/internal/state"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reconcile recorded state with real resources",
	Long: `Reads every applied resource back from the provider. Records for
resources that no longer exist are dropped, and recorded attributes are
updated to match what the provider reports. The next plan then accounts
for the drift.`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

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

	report, err := engine.Refresh(ctx, records, prov, store)
	if err != nil {
		return err
	}

	fmt.Printf("Refreshed %d resource(s): %d changed, %d missing.\n",
		report.Checked, len(report.Changed), len(report.Missing))
	for _, id := range report.Changed {
		fmt.Printf("  ~ %s: attributes updated\n", id)
	}
	for _, id := range report.Missing {
		fmt.Printf("  - %s: no longer exists, removed from state\n", id)
	}
	return nil
}
