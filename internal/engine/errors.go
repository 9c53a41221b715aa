// Package engine implements the provisioning core: declaration
// validation, dependency graph construction, plan computation, and
// concurrent reconciliation against a provider capability.
package engine

import (
	"fmt"
	"strings"
)

// ValidationError reports a bad declaration: unknown kind, duplicate
// id, dangling reference, or an illegal attribute path. Validation
// failures abort the run before any provider call is made.
type ValidationError struct {
	ID    string
	Cause string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid declaration %q: %s", e.ID, e.Cause)
}

// CycleError reports a dependency cycle. Cycle holds the path from the
// first repeated declaration through the edge that closes the loop,
// e.g. [a b c a]. Detection is deterministic: the same declaration set
// always reports the same cycle.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}
