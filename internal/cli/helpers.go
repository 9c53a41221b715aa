package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/terrane-io/terrane/internal/config"
	"github.com/terrane-io/terrane/internal/engine"
	"github.com/terrane-io/terrane/internal/ir"
	"github.com/terrane-io/terrane/internal/provider"
	"github.com/terrane-io/terrane/internal/state"
	"github.com/terrane-io/terrane/providers/docker"
	"github.com/terrane-io/terrane/providers/memory"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
)

// newRegistry returns the registry of built-in providers.
func newRegistry() *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register("memory", memory.New())
	reg.Register("docker", docker.New())
	return reg
}

// selectedProvider resolves the --provider flag against the registry.
func selectedProvider() (provider.Interface, error) {
	return newRegistry().Get(providerName)
}

// loadValidatedGraph loads the configuration, validates the declaration
// set, and builds its dependency graph.
func loadValidatedGraph() (*config.File, *engine.Graph, error) {
	f, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	set := f.DeclarationSet()
	if err := engine.Validate(set); err != nil {
		return nil, nil, err
	}
	graph, err := engine.BuildGraph(set)
	if err != nil {
		return nil, nil, err
	}
	return f, graph, nil
}

// stateConfig returns the configuration file's state backend block, so
// every command opens the same store. Destroy and refresh must keep
// working after the configuration file is gone; a missing file selects
// the default local store.
func stateConfig() (*state.Config, error) {
	f, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f.State, nil
}

// renderPlan prints the change list in creation order, deletes first.
func renderPlan(plan *ir.Plan, graph *engine.Graph) {
	for _, op := range plan.Operations {
		symbol, color := "~", colorYellow
		verb := "updated"
		switch op.Kind {
		case ir.OpCreate:
			symbol, color, verb = "+", colorGreen, "created"
		case ir.OpDelete:
			symbol, color, verb = "-", colorRed, "deleted"
		}

		kind := "unknown"
		if d := graph.Declaration(op.DeclarationID); d != nil {
			kind = string(d.Kind)
		}

		fmt.Printf("\n%s  # %s will be %s (%s)%s\n", color, op.DeclarationID, verb, op.Reason, colorReset)
		fmt.Printf("%s  %s %s %q%s\n", color, symbol, kind, op.DeclarationID, colorReset)
	}
}

// renderPlanSummary prints the summary counts.
func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create: %d\n", plan.Summary.Create)
	fmt.Printf("  Update: %d\n", plan.Summary.Update)
	fmt.Printf("  Delete: %d\n", plan.Summary.Delete)
	fmt.Printf("  NoOp:   %d\n", plan.Summary.NoOp)
}

// renderRunResult prints the outcome of an apply or destroy run.
func renderRunResult(result *ir.RunResult) {
	switch result.Outcome {
	case ir.RunSucceeded:
		fmt.Printf("\n%sRun complete!%s Resources: %d applied, %d destroyed.\n",
			colorGreen, colorReset, result.Applied, result.Deleted)
	case ir.RunCancelled:
		fmt.Printf("\n%sRun cancelled.%s Resources: %d applied, %d destroyed, %d cancelled.\n",
			colorYellow, colorReset, result.Applied, result.Deleted, result.Cancelled)
	default:
		fmt.Printf("\n%sRun failed.%s Resources: %d applied, %d destroyed, %d failed, %d blocked.\n",
			colorRed, colorReset, result.Applied, result.Deleted, result.Failed, result.Blocked)
	}

	for _, f := range result.Failures {
		fmt.Printf("%s  %s: %s%s\n", colorRed, f.DeclarationID, f.Cause, colorReset)
	}
	for _, b := range result.BlockedBy {
		fmt.Printf("%s  %s: blocked by %s%s\n", colorYellow, b.DeclarationID,
			strings.Join(b.Chain[1:], " -> "), colorReset)
	}
}

// printEvent streams per-operation progress during a run.
func printEvent(ev engine.Event) {
	verb := "Modifying"
	done := "Modifications complete"
	switch ev.Kind {
	case ir.OpCreate:
		verb, done = "Creating", "Creation complete"
	case ir.OpDelete:
		verb, done = "Destroying", "Destruction complete"
	}

	switch ev.Status {
	case "started":
		fmt.Printf("%s: %s...\n", ev.DeclarationID, verb)
	case "completed":
		fmt.Printf("%s: %s after %s\n", ev.DeclarationID, done, ev.Duration.Round(10*time.Millisecond))
	case "failed":
		fmt.Printf("%s%s: Failed: %v%s\n", colorRed, ev.DeclarationID, ev.Err, colorReset)
	case "blocked":
		fmt.Printf("%s%s: Blocked by a failed dependency%s\n", colorYellow, ev.DeclarationID, colorReset)
	case "cancelled":
		fmt.Printf("%s%s: Cancelled%s\n", colorYellow, ev.DeclarationID, colorReset)
	}
}

// confirm asks for interactive approval.
func confirm(prompt string) bool {
	fmt.Printf("\n%s (y/n): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

// runOutcomeError converts a non-success run into the error main maps
// to an exit code.
func runOutcomeError(result *ir.RunResult) error {
	if result.Outcome == ir.RunSucceeded {
		return nil
	}
	return &runFailedError{result: result}
}
