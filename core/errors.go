package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Callers match them with
// errors.Is; BranchError additionally supports errors.As for per-branch
// detail.
var (
	// ErrInvalidScopeInput marks malformed identity input (user or
	// application id). This is the only error that rejects a request
	// outright: malformed identity must not fail open.
	ErrInvalidScopeInput = errors.New("invalid scope input")

	// ErrRetrievalUnavailable means every retrieval branch failed. The
	// caller degrades to an empty context rather than erroring the
	// user-visible response.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrPlannerTimeout means the planner exceeded its budget. Recovered
	// locally via the fallback plan; never surfaced to the caller.
	ErrPlannerTimeout = errors.New("planner timeout")

	// ErrPersistenceFailure means a memory write exhausted its retries in
	// the background worker and was dead-lettered.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// BranchError records the failure of a single retrieval branch. One failed
// branch never fails the request; the executor absorbs it and marks the
// response degraded.
type BranchError struct {
	Branch  Source
	Timeout bool
	Err     error
}

func (e *BranchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("branch %s timed out: %v", e.Branch, e.Err)
	}
	return fmt.Sprintf("branch %s failed: %v", e.Branch, e.Err)
}

func (e *BranchError) Unwrap() error {
	return e.Err
}
