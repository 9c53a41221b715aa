// Package cli wires the engine, config loader, state stores, and
// providers into the terrane command tree.
package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/terrane-io/terrane/internal/logging"
)

var (
	cfgPath      string
	statePath    string
	providerName string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "terrane",
	Short: "Vendor-agnostic declarative infrastructure provisioning",
	Long: `Terrane reconciles a declared set of infrastructure resources against
recorded state. Declarations reference each other's outputs through
typed references; terrane orders work along the dependency graph,
applies independent resources concurrently, and records every result
so interrupted runs resume where they left off.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "terrane.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", filepath.Join(".terrane", "state.json"), "Path to the local state file")
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "memory", "Provider to reconcile against (memory, docker)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(versionCmd)
}
