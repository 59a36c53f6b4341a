package workers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// TaskWorker drives task_enrichment jobs: enrich, then optionally backfill
// priority and due_date when the LLM supplied them and the task's own
// values are still unset. A user-set value is never overwritten.
type TaskWorker struct {
	Tasks storage.TaskStore
	Port  llm.Port
}

// Handle implements broker.Handler for the task_enrichment queue.
func (w *TaskWorker) Handle(payload []byte) error {
	taskID, err := decodeTaskPayload(payload)
	if err != nil {
		return llm.NewError(llm.KindValidation, err)
	}
	ctx := context.Background()

	task, err := w.Tasks.Get(ctx, taskID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if task.ProcessingStatus == types.StatusProcessing || task.ProcessingStatus == types.StatusCompleted {
		return nil
	}

	if err := w.Tasks.TransitionStatus(ctx, taskID, types.StatusPending, types.StatusProcessing); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil
		}
		return err
	}

	result, err := w.Port.ProcessText(ctx, task.Content, llm.TextContext{Type: "task_enrichment"})
	if err != nil {
		if ferr := w.Tasks.Fail(ctx, taskID, err.Error()); ferr != nil {
			return ferr
		}
		return nil
	}

	priority, dueDate := suggestionsFrom(task, result)
	if priority != nil || dueDate != nil {
		if err := w.Tasks.ApplySuggestions(ctx, taskID, priority, dueDate); err != nil {
			return err
		}
	}

	enrichmentJSON, _ := json.Marshal(result)
	return w.Tasks.Complete(ctx, taskID, enrichmentJSON)
}

// suggestionsFrom extracts priority/due_date overrides from the
// enrichment metadata, but only for columns the task doesn't already
// have a value for: a user-set value is never overwritten.
func suggestionsFrom(task *types.Task, result *types.EnrichmentResult) (*types.Priority, *time.Time) {
	var priority *types.Priority
	var dueDate *time.Time

	if task.Priority == nil {
		if raw, ok := result.Metadata["suggested_priority"]; ok {
			if s, ok := raw.(string); ok && types.Priority(s).Valid() {
				p := types.Priority(s)
				priority = &p
			}
		}
	}
	if task.DueDate == nil {
		if raw, ok := result.Metadata["suggested_due_date"]; ok {
			if s, ok := raw.(string); ok {
				if t, err := time.Parse("2006-01-02", s); err == nil {
					dueDate = &t
				}
			}
		}
	}
	return priority, dueDate
}
