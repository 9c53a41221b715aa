package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/terrane-io/terrane/internal/engine"
	"github.com/terrane-io/terrane/internal/ir"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitInvalid   = 2
	ExitRunFailed = 3
	ExitCancelled = 130
)

// runFailedError carries a finished run whose outcome was not success,
// so main can map it to an exit code.
type runFailedError struct {
	result *ir.RunResult
}

func (e *runFailedError) Error() string {
	if e.result.Outcome == ir.RunCancelled {
		return "run cancelled"
	}
	return fmt.Sprintf("run failed: %d declaration(s) failed, %d blocked", e.result.Failed, e.result.Blocked)
}

// ExitCode maps an Execute error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var ve *engine.ValidationError
	var ce *engine.CycleError
	var rf *runFailedError
	switch {
	case errors.As(err, &ve), errors.As(err, &ce):
		return ExitInvalid
	case errors.As(err, &rf):
		if rf.result.Outcome == ir.RunCancelled {
			return ExitCancelled
		}
		return ExitRunFailed
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	}
	return ExitError
}
