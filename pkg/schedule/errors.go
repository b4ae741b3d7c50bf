package schedule

import "fmt"

// CircularDependencyError rejects an edge whose insertion would close a cycle
// in the task dependency graph. Nothing is persisted when it is returned.
type CircularDependencyError struct {
	TaskID          int64
	DependsOnTaskID int64
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("dependency %d -> %d would create a cycle", e.TaskID, e.DependsOnTaskID)
}

// MalformedChainError reports a deliverable pointer structure that is not a
// simple linear chain: a cycle, a fan-in, or a pointer to a deliverable
// outside the task. The resolver fails fast instead of computing a partial
// duration.
type MalformedChainError struct {
	TaskID int64
	Reason string
}

func (e *MalformedChainError) Error() string {
	return fmt.Sprintf("malformed deliverable chain for task %d: %s", e.TaskID, e.Reason)
}

// StaleComputationError reports an optimistic-concurrency conflict: the task
// row changed between the snapshot the cascade was computed over and the
// attempt to apply it.
type StaleComputationError struct {
	TaskID int64
}

func (e *StaleComputationError) Error() string {
	return fmt.Sprintf("task %d changed since the schedule was computed", e.TaskID)
}

// PartialCascadeError reports a cascade whose computed changes could not all
// be applied. Updated and Failed together enumerate every task whose dates
// were or would have been moved, so the caller can retry or reconcile.
type PartialCascadeError struct {
	Updated []int64
	Failed  []int64
	Cause   error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("cascade applied %d of %d task updates: %v",
		len(e.Updated), len(e.Updated)+len(e.Failed), e.Cause)
}

func (e *PartialCascadeError) Unwrap() error { return e.Cause }
