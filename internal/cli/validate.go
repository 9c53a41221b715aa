package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Checks that every declaration has a known kind, that ids are unique,
that all references point at existing declarations and exported
attributes, and that the dependency graph is acyclic.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, graph, err := loadValidatedGraph()
	if err != nil {
		return err
	}

	fmt.Printf("Configuration is valid: %d declaration(s).\n", len(graph.Order()))
	return nil
}
