// Package recovery sweeps entities left stuck in PROCESSING by a worker
// crash and re-enqueues them, the way scrypster-memento's engine recovers
// pending enrichments on startup.
package recovery

import (
	"context"
	"log"

	"github.com/codevalley/robo-worker/internal/enqueue"
	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

const batchSize = 100

// Sweep recovers notes, tasks, and activities stuck in PROCESSING (a
// worker died mid-job, so no handler will ever call finish() for them)
// by moving each back to PENDING and re-enqueuing it. It is best-effort:
// a row that fails to transition (e.g. a racing worker already claimed
// it) is skipped and logged, not retried.
func Sweep(ctx context.Context, notes storage.NoteStore, tasks storage.TaskStore, activities storage.ActivityStore, enqueuer *enqueue.Enqueuer) {
	sweepNotes(ctx, notes, enqueuer)
	sweepTasks(ctx, tasks, enqueuer)
	sweepActivities(ctx, activities, enqueuer)
}

func sweepNotes(ctx context.Context, notes storage.NoteStore, enqueuer *enqueue.Enqueuer) {
	stuck, err := notes.ListByStatus(ctx, types.StatusProcessing, batchSize)
	if err != nil {
		log.Printf("recovery: failed to list stuck notes: %v", err)
		return
	}
	recovered := 0
	for _, n := range stuck {
		if err := notes.TransitionStatus(ctx, n.ID, types.StatusProcessing, types.StatusPending); err != nil {
			log.Printf("recovery: could not reclaim note %d: %v", n.ID, err)
			continue
		}
		enqueuer.EnqueueNote(n.ID)
		recovered++
	}
	if recovered > 0 {
		log.Printf("recovery: re-enqueued %d note(s) stuck in PROCESSING", recovered)
	}
}

func sweepTasks(ctx context.Context, tasks storage.TaskStore, enqueuer *enqueue.Enqueuer) {
	stuck, err := tasks.ListByStatus(ctx, types.StatusProcessing, batchSize)
	if err != nil {
		log.Printf("recovery: failed to list stuck tasks: %v", err)
		return
	}
	recovered := 0
	for _, t := range stuck {
		if err := tasks.TransitionStatus(ctx, t.ID, types.StatusProcessing, types.StatusPending); err != nil {
			log.Printf("recovery: could not reclaim task %d: %v", t.ID, err)
			continue
		}
		enqueuer.EnqueueTask(t.ID)
		recovered++
	}
	if recovered > 0 {
		log.Printf("recovery: re-enqueued %d task(s) stuck in PROCESSING", recovered)
	}
}

func sweepActivities(ctx context.Context, activities storage.ActivityStore, enqueuer *enqueue.Enqueuer) {
	stuck, err := activities.ListByStatus(ctx, types.StatusProcessing, batchSize)
	if err != nil {
		log.Printf("recovery: failed to list stuck activities: %v", err)
		return
	}
	recovered := 0
	for _, a := range stuck {
		if err := activities.TransitionStatus(ctx, a.ID, types.StatusProcessing, types.StatusPending); err != nil {
			log.Printf("recovery: could not reclaim activity %d: %v", a.ID, err)
			continue
		}
		enqueuer.EnqueueActivity(a.ID)
		recovered++
	}
	if recovered > 0 {
		log.Printf("recovery: re-enqueued %d activity/activities stuck in PROCESSING", recovered)
	}
}
