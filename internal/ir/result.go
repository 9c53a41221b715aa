package ir

import "time"

// RunOutcome is the terminal outcome of a whole run.
type RunOutcome string

const (
	RunSucceeded RunOutcome = "succeeded"
	RunFailed    RunOutcome = "failed"
	RunCancelled RunOutcome = "cancelled"
)

// DeclStatus is the per-declaration status across a single run. Blocked
// is terminal for the run only; a blocked declaration is planned again
// from scratch on the next run.
type DeclStatus string

const (
	DeclPending   DeclStatus = "pending"
	DeclApplying  DeclStatus = "applying"
	DeclApplied   DeclStatus = "applied"
	DeclDeleted   DeclStatus = "deleted"
	DeclFailed    DeclStatus = "failed"
	DeclBlocked   DeclStatus = "blocked"
	DeclCancelled DeclStatus = "cancelled"
)

// Failure records one failed declaration and its cause.
type Failure struct {
	DeclarationID string `json:"declarationId"`
	Cause         string `json:"cause"`
}

// BlockedInfo explains why a declaration was blocked. Chain is the
// minimal dependency path from the declaration down to the failed root.
type BlockedInfo struct {
	DeclarationID string   `json:"declarationId"`
	Chain         []string `json:"chain"`
}

// RunResult is the structured summary of one reconciliation run.
type RunResult struct {
	RunID     string                `json:"runId"`
	Outcome   RunOutcome            `json:"outcome"`
	StartedAt time.Time             `json:"startedAt"`
	Duration  time.Duration         `json:"duration"`
	Applied   int                   `json:"applied"`
	Deleted   int                   `json:"deleted"`
	Failed    int                   `json:"failed"`
	Blocked   int                   `json:"blocked"`
	Cancelled int                   `json:"cancelled"`
	Failures  []Failure             `json:"failures,omitempty"`
	BlockedBy []BlockedInfo         `json:"blockedBy,omitempty"`
	Statuses  map[string]DeclStatus `json:"statuses"`
}
