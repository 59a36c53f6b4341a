package workers

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/codevalley/robo-worker/internal/clock"
	"github.com/codevalley/robo-worker/internal/enqueue"
	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// NoteWorker drives note_enrichment jobs through the three-stage
// sub-pipeline of §4.5: enrich (always), extract tasks (non-fatal),
// extract moments (non-fatal). Only stage 1's failure fails the job;
// stages 2 and 3 are logged and swallowed so the note still completes.
type NoteWorker struct {
	Notes      storage.NoteStore
	Tasks      storage.TaskStore
	Activities storage.ActivityStore
	Moments    storage.MomentStore
	Port       llm.Port
	Enqueuer   *enqueue.Enqueuer
	Clock      clock.Clock
}

// Handle implements broker.Handler for the note_enrichment queue.
func (w *NoteWorker) Handle(payload []byte) error {
	noteID, err := decodeNotePayload(payload)
	if err != nil {
		return llm.NewError(llm.KindValidation, err)
	}
	ctx := context.Background()

	note, err := w.Notes.Get(ctx, noteID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil // entity gone; no-op per §7
	}
	if err != nil {
		return err // persistence error: dispatcher may retry
	}

	if note.ProcessingStatus == types.StatusProcessing || note.ProcessingStatus == types.StatusCompleted {
		return nil // idempotency guard: redelivered job, already admitted or done
	}

	if err := w.Notes.TransitionStatus(ctx, noteID, types.StatusPending, types.StatusProcessing); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil // a concurrent worker already claimed this note
		}
		return err
	}

	if note.Content == "" {
		w.fail(ctx, noteID, llm.NewError(llm.KindValidation, errors.New("note content is empty")))
		return nil
	}

	// Stage 1: enrich. Failure here fails the whole job.
	result, err := w.Port.ProcessText(ctx, note.Content, llm.TextContext{Type: "note_enrichment"})
	if err != nil {
		w.fail(ctx, noteID, err)
		return nil // business failure already finalized; not an infra retry
	}
	enrichmentJSON, _ := json.Marshal(result)

	// Stage 2: extract tasks. Non-fatal.
	w.extractTasks(ctx, noteID, note)

	// Stage 3: extract moments. Non-fatal.
	w.extractMoments(ctx, note)

	if err := w.Notes.Complete(ctx, noteID, enrichmentJSON); err != nil {
		return err
	}
	return nil
}

func (w *NoteWorker) fail(ctx context.Context, noteID int64, cause error) {
	if err := w.Notes.Fail(ctx, noteID, cause.Error()); err != nil {
		log.Printf("note worker: failed to record failure for note %d: %v", noteID, err)
	}
}

func (w *NoteWorker) extractTasks(ctx context.Context, noteID int64, note *types.Note) {
	candidates, err := w.Port.ExtractTasks(ctx, note.Content, w.Clock.Now())
	if err != nil {
		log.Printf("note worker: task extraction failed for note %d, note still completes: %v", noteID, err)
		return
	}
	for _, candidate := range candidates {
		taskID, err := w.Tasks.CreateDerived(ctx, note.UserID, noteID, candidate)
		if err != nil {
			log.Printf("note worker: failed to persist derived task for note %d: %v", noteID, err)
			continue
		}
		if w.Enqueuer != nil {
			w.Enqueuer.EnqueueTask(taskID)
		}
	}
}

func (w *NoteWorker) extractMoments(ctx context.Context, note *types.Note) {
	activities, err := w.Activities.ListByUser(ctx, note.UserID)
	if err != nil {
		log.Printf("note worker: listing activities failed for user %s, skipping moment extraction: %v", note.UserID, err)
		return
	}
	if len(activities) == 0 {
		return // pre-check: nothing to match against
	}

	prompt := buildMomentExtractionPrompt(note.Content, activities)
	result, err := w.Port.ProcessText(ctx, prompt, llm.TextContext{Type: "moment_extraction"})
	if err != nil {
		log.Printf("note worker: moment extraction failed for note %d: %v", note.ID, err)
		return
	}

	var candidates []types.MomentCandidate
	if err := json.Unmarshal([]byte(result.Content), &candidates); err != nil {
		log.Printf("note worker: moment extraction returned non-conformant content for note %d: %v", note.ID, err)
		return
	}

	byName := make(map[string]*types.Activity, len(activities))
	for _, a := range activities {
		byName[a.Name] = a
	}

	for _, candidate := range candidates {
		activity, ok := byName[candidate.ActivityName]
		if !ok {
			log.Printf("note worker: moment referenced unknown activity %q, skipping", candidate.ActivityName)
			continue
		}
		data, err := json.Marshal(candidate.Data)
		if err != nil {
			continue
		}
		timestamp := w.Clock.Now()
		if candidate.Timestamp != nil {
			timestamp = *candidate.Timestamp
		}
		if _, err := w.Moments.Create(ctx, &types.Moment{
			ActivityID: activity.ID,
			UserID:     note.UserID,
			Data:       data,
			Timestamp:  timestamp,
		}); err != nil {
			log.Printf("note worker: failed to persist moment for activity %d: %v", activity.ID, err)
		}
	}
}

// buildMomentExtractionPrompt is implementation-defined per §4.5 step 3:
// it supplies the note's content alongside the user's activity schemas so
// the LLM can match occurrences described in the note against them.
func buildMomentExtractionPrompt(noteContent string, activities []*types.Activity) string {
	type schemaRef struct {
		Name   string          `json:"name"`
		Schema json.RawMessage `json:"schema"`
	}
	refs := make([]schemaRef, 0, len(activities))
	for _, a := range activities {
		refs = append(refs, schemaRef{Name: a.Name, Schema: a.ActivitySchema})
	}
	schemasJSON, _ := json.Marshal(refs)

	payload := struct {
		NoteContent string          `json:"note_content"`
		Activities  json.RawMessage `json:"activities"`
	}{NoteContent: noteContent, Activities: schemasJSON}
	out, _ := json.Marshal(payload)
	return string(out)
}
