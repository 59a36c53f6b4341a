// Package storage provides composable storage interfaces for the enrichment
// subsystem.
//
// The storage layer is designed with small, focused interfaces that can be
// implemented independently. This follows the Interface Segregation
// Principle and keeps each worker's persistence surface narrow: a task
// worker depends on TaskStore and no other store.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/codevalley/robo-worker/pkg/types"
)

// ErrNotFound is returned by Get/Load methods when no row matches the
// requested ID.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a guarded status transition does not apply
// cleanly, e.g. because another worker already moved the row out of the
// expected status (broker redelivery racing a completed transition).
var ErrConflict = errors.New("storage: status transition conflict")

// NoteStore persists Notes and drives their processing_status transitions.
type NoteStore interface {
	// Get retrieves a note by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*types.Note, error)

	// Create inserts a new note in PENDING status and returns its ID.
	Create(ctx context.Context, n *types.Note) (int64, error)

	// TransitionStatus moves a note from `from` to `to`, failing with
	// ErrConflict if the row's current status is not `from`. This is the
	// guard a worker uses before calling the LLM, preventing duplicate
	// work on redelivered jobs.
	TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error

	// Complete persists enrichment output and marks the note COMPLETED.
	Complete(ctx context.Context, id int64, enrichmentData []byte) error

	// Fail marks the note FAILED; the error text is stored for inspection.
	Fail(ctx context.Context, id int64, reason string) error

	// ListByStatus returns notes in the given status across all users,
	// oldest first, bounded by limit. internal/recovery.Sweep calls this
	// at worker startup to re-enqueue notes a crashed worker left stuck
	// in PROCESSING.
	ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Note, error)
}

// TaskStore persists Tasks, whether user-authored or note-derived.
type TaskStore interface {
	Get(ctx context.Context, id int64) (*types.Task, error)
	Create(ctx context.Context, t *types.Task) (int64, error)
	TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error
	Complete(ctx context.Context, id int64, enrichmentData []byte) error
	Fail(ctx context.Context, id int64, reason string) error
	ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Task, error)

	// CreateDerived inserts a task produced by a note's extract-tasks
	// stage in PENDING status, linking it back via NoteID, and returns its
	// ID.
	CreateDerived(ctx context.Context, userID string, noteID int64, candidate types.TaskCandidate) (int64, error)

	// ApplySuggestions backfills priority and/or due_date from LLM
	// enrichment. A nil argument leaves that column untouched; callers
	// only pass a value when the task's own column was unset, so a
	// user-supplied value is never overwritten.
	ApplySuggestions(ctx context.Context, id int64, priority *types.Priority, dueDate *time.Time) error
}

// ActivityStore persists Activities and their derived schema_render.
type ActivityStore interface {
	Get(ctx context.Context, id int64) (*types.Activity, error)
	Create(ctx context.Context, a *types.Activity) (int64, error)
	TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error
	Complete(ctx context.Context, id int64, schemaRender []byte) error
	Fail(ctx context.Context, id int64, reason string) error
	ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Activity, error)

	// ListByUser returns a user's activities, used by the note worker's
	// extract-moments stage to find candidate schemas for a note's
	// content before asking the LLM to match against them.
	ListByUser(ctx context.Context, userID string) ([]*types.Activity, error)
}

// MomentStore persists Moments derived from a note's extract-moments stage.
type MomentStore interface {
	Create(ctx context.Context, m *types.Moment) (int64, error)
}
