package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the dependency graph in DOT format",
	Long: `Prints the declaration dependency graph in Graphviz DOT format.
Pipe the output into dot to render it:

  terrane graph | dot -Tsvg > graph.svg`,
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	_, graph, err := loadValidatedGraph()
	if err != nil {
		return err
	}

	fmt.Print(graph.ToDOT())
	return nil
}
