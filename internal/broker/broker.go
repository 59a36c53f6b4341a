// Package broker adapts a durable, at-least-once job queue on top of
// Redis: named FIFO lists for pending work plus a hash per job carrying
// status and metadata. It models the adapter contract of §4.1/§6.1: every
// operation is best-effort and never panics or returns a Go error across
// the Enqueue/FetchStatus/QueueHealth boundary that a caller cannot safely
// ignore — broker unavailability degrades to a zero value, not a crash.
package broker

import (
	"context"
	"time"
)

// Status is a job's lifecycle state as tracked by the broker, independent
// of the entity-level ProcessingStatus the job acts upon.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusNotFound Status = "not_found"
)

// Queue names are fixed per §6.1.
const (
	QueueNoteEnrichment   = "note_enrichment"
	QueueTaskEnrichment   = "task_enrichment"
	QueueActivitySchema   = "activity_schema"
)

// AllQueues lists every queue a production worker pool consumes by
// default (§4.2's "all three queues handled by one worker pool" mode).
var AllQueues = []string{QueueNoteEnrichment, QueueTaskEnrichment, QueueActivitySchema}

// EnqueueOptions configures a single enqueue call. Zero values take the
// package-level defaults (job_timeout 600s, ttl_in_queue 3600s, result_ttl
// 86400s).
type EnqueueOptions struct {
	JobID      string // deterministic id; caller-supplied for dedup, e.g. "note_processing_42"
	JobTimeout time.Duration
	TTLInQueue time.Duration
	ResultTTL  time.Duration
	Meta       map[string]string
}

const (
	DefaultJobTimeout = 600 * time.Second
	DefaultTTLInQueue = 3600 * time.Second
	DefaultResultTTL  = 86400 * time.Second
)

func (o EnqueueOptions) withDefaults() EnqueueOptions {
	if o.JobTimeout <= 0 {
		o.JobTimeout = DefaultJobTimeout
	}
	if o.TTLInQueue <= 0 {
		o.TTLInQueue = DefaultTTLInQueue
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = DefaultResultTTL
	}
	return o
}

// JobRecord is the broker-resident metadata for one job, returned by
// FetchStatus.
type JobRecord struct {
	JobID      string
	Queue      string
	Status     Status
	Payload    []byte
	CreatedAt  time.Time
	EndedAt    *time.Time
	LastError  string
	Meta       map[string]string
	JobTimeout time.Duration
}

// QueueStats is the best-effort snapshot returned by QueueHealth.
type QueueStats struct {
	PendingCount   int
	FailedCount    int
	ScheduledCount int
	WorkerCount    int
	IsEmpty        bool
	// Unreachable is set when the broker could not be reached; all counts
	// are then zero rather than meaningful.
	Unreachable bool
}

// Handler processes one job's payload. It returns a non-nil error to
// signal failure; the dispatcher classifies it (see internal/dispatcher)
// to decide between an in-process backoff retry and a terminal FAILED.
type Handler func(payload []byte) error

// HandlerRegistry maps queue name to its Handler.
type HandlerRegistry map[string]Handler

// Broker is the C1 adapter contract.
type Broker interface {
	// Enqueue submits payload to queue, returning the assigned job id, or
	// ("", false) if the broker is unreachable. Never returns an error a
	// caller is required to handle — broker outages degrade to a no-op.
	Enqueue(queue string, payload []byte, opts EnqueueOptions) (jobID string, ok bool)

	// FetchStatus looks up a job by id. A not-found job reports
	// Status: StatusNotFound, not an error.
	FetchStatus(jobID string) (*JobRecord, error)

	// QueueHealth reports best-effort stats for queue.
	QueueHealth(queue string) QueueStats

	// StartWorker blocks, pulling jobs round-robin across queues and
	// dispatching to the matching registered handler, until ctx is
	// canceled. It finishes any in-flight job before returning.
	StartWorker(ctx context.Context, queues []string, handlers HandlerRegistry) error

	Close() error
}
