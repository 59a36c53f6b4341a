// Package enqueue is C6, the single integration surface external services
// use to hand work to the enrichment subsystem. Every method is
// non-blocking and never raises: broker failure yields a zero value so
// the caller's write-transaction can proceed and be retried later.
package enqueue

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/codevalley/robo-worker/internal/broker"
)

// Enqueuer is C6.
type Enqueuer struct {
	broker     broker.Broker
	jobTimeout time.Duration
}

// New builds an Enqueuer over b. jobTimeout is stamped onto every job it
// enqueues (§4.1's job_timeout field, consulted by the broker's watchdog
// in StartWorker); zero takes the broker's own default.
func New(b broker.Broker, jobTimeout time.Duration) *Enqueuer {
	return &Enqueuer{broker: b, jobTimeout: jobTimeout}
}

type notePayload struct {
	NoteID int64 `json:"note_id"`
}

type taskPayload struct {
	TaskID int64 `json:"task_id"`
}

type activityPayload struct {
	ActivityID int64 `json:"activity_id"`
}

// EnqueueNote submits a note for enrichment, keyed by a deterministic job
// id so repeated enqueues for the same note collapse per broker semantics.
func (e *Enqueuer) EnqueueNote(noteID int64) string {
	payload, _ := json.Marshal(notePayload{NoteID: noteID})
	jobID, ok := e.broker.Enqueue(broker.QueueNoteEnrichment, payload, broker.EnqueueOptions{
		JobID:      fmt.Sprintf("note_processing_%d", noteID),
		JobTimeout: e.jobTimeout,
	})
	if !ok {
		log.Printf("enqueue: broker unavailable, dropping note %d enrichment", noteID)
		return ""
	}
	return jobID
}

// EnqueueTask submits a task for enrichment.
func (e *Enqueuer) EnqueueTask(taskID int64) string {
	payload, _ := json.Marshal(taskPayload{TaskID: taskID})
	jobID, ok := e.broker.Enqueue(broker.QueueTaskEnrichment, payload, broker.EnqueueOptions{
		JobID:      fmt.Sprintf("task_processing_%d", taskID),
		JobTimeout: e.jobTimeout,
	})
	if !ok {
		log.Printf("enqueue: broker unavailable, dropping task %d enrichment", taskID)
		return ""
	}
	return jobID
}

// EnqueueActivity submits an activity for schema analysis.
func (e *Enqueuer) EnqueueActivity(activityID int64) string {
	payload, _ := json.Marshal(activityPayload{ActivityID: activityID})
	jobID, ok := e.broker.Enqueue(broker.QueueActivitySchema, payload, broker.EnqueueOptions{
		JobID:      fmt.Sprintf("activity_schema_%d", activityID),
		JobTimeout: e.jobTimeout,
	})
	if !ok {
		log.Printf("enqueue: broker unavailable, dropping activity %d schema analysis", activityID)
		return ""
	}
	return jobID
}

// JobStatus passes through to the broker's FetchStatus.
func (e *Enqueuer) JobStatus(jobID string) (*broker.JobRecord, error) {
	return e.broker.FetchStatus(jobID)
}

// QueueHealth reports per-queue stats across all three fixed queues.
func (e *Enqueuer) QueueHealth() map[string]broker.QueueStats {
	out := make(map[string]broker.QueueStats, len(broker.AllQueues))
	for _, q := range broker.AllQueues {
		out[q] = e.broker.QueueHealth(q)
	}
	return out
}
