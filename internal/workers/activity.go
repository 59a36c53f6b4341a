package workers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// ActivityWorker drives activity_schema jobs: analyze the user-authored
// activity_schema and persist the rendered form layout it produces.
type ActivityWorker struct {
	Activities storage.ActivityStore
	Port       llm.Port
}

// Handle implements broker.Handler for the activity_schema queue.
func (w *ActivityWorker) Handle(payload []byte) error {
	activityID, err := decodeActivityPayload(payload)
	if err != nil {
		return llm.NewError(llm.KindValidation, err)
	}
	ctx := context.Background()

	activity, err := w.Activities.Get(ctx, activityID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if activity.ProcessingStatus == types.StatusProcessing || activity.ProcessingStatus == types.StatusCompleted {
		return nil
	}

	if err := w.Activities.TransitionStatus(ctx, activityID, types.StatusPending, types.StatusProcessing); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil
		}
		return err
	}

	render, err := w.Port.AnalyzeActivitySchema(ctx, activity.ActivitySchema)
	if err != nil {
		if ferr := w.Activities.Fail(ctx, activityID, err.Error()); ferr != nil {
			return ferr
		}
		return nil
	}

	renderJSON, err := json.Marshal(render)
	if err != nil {
		if ferr := w.Activities.Fail(ctx, activityID, err.Error()); ferr != nil {
			return ferr
		}
		return nil
	}

	return w.Activities.Complete(ctx, activityID, renderJSON)
}
