// Package types defines the core entity data structures shared by
// the enrichment subsystem: Notes, Tasks, Activities, Moments, and the
// processing-status state machine that governs their enrichment lifecycle.
package types

// ProcessingStatus is the enrichment lifecycle state of a Note, Task, or
// Activity. Transitions are constrained to PENDING -> PROCESSING ->
// {COMPLETED, FAILED}, plus an administrative * -> SKIPPED and an explicit
// retry that re-opens PENDING from FAILED.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
	StatusSkipped    ProcessingStatus = "SKIPPED"
)

// Valid reports whether s is one of the five recognized processing statuses.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal
// processing_status transition per the state machine invariant.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	if next == StatusSkipped {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusPending // administrative retry
	default:
		return false
	}
}

// TaskStatus is the user-facing lifecycle of a Task, independent of its
// enrichment ProcessingStatus.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// Priority is the suggested or user-assigned urgency of a Task.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is one of the four recognized priority levels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
