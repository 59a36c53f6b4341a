package types

import (
	"encoding/json"
	"time"
)

// Note is the primary input for the sequential note-derivation pipeline:
// enrich -> extract tasks -> extract moments.
type Note struct {
	ID                int64            `json:"id"`
	UserID            string           `json:"user_id"`
	Content           string           `json:"content"`
	Attachments       []string         `json:"attachments,omitempty"`
	ProcessingStatus  ProcessingStatus `json:"processing_status"`
	EnrichmentData    json.RawMessage  `json:"enrichment_data,omitempty"`
	ProcessedAt       *time.Time       `json:"processed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Task is created directly by a user, or derived from a Note during its
// extract-tasks enrichment stage (in which case NoteID is set).
type Task struct {
	ID               int64            `json:"id"`
	UserID           string           `json:"user_id"`
	Content          string           `json:"content"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	EnrichmentData   json.RawMessage  `json:"enrichment_data,omitempty"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	Status           TaskStatus       `json:"status"`
	Priority         *Priority        `json:"priority,omitempty"`
	DueDate          *time.Time       `json:"due_date,omitempty"`
	ParentID         *int64           `json:"parent_id,omitempty"`
	NoteID           *int64           `json:"note_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Activity describes a user-defined schema of occurrences (e.g. "Mood",
// "Workout") that Moments are validated against.
type Activity struct {
	ID               int64            `json:"id"`
	UserID           string           `json:"user_id"`
	Name             string           `json:"name"`
	ActivitySchema   json.RawMessage  `json:"activity_schema"`
	Icon             string           `json:"icon,omitempty"`
	Color            string           `json:"color,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	SchemaRender     json.RawMessage  `json:"schema_render,omitempty"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Moment is a derived entity created by the note pipeline's extract-moments
// stage when the LLM surfaces an occurrence matching an existing Activity's
// schema. It is never created without its parent note reaching COMPLETED.
type Moment struct {
	ID         int64           `json:"id"`
	ActivityID int64           `json:"activity_id"`
	UserID     string          `json:"user_id"`
	Data       json.RawMessage `json:"data"`
	Timestamp  time.Time       `json:"timestamp"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TaskCandidate is an LLM-proposed task surfaced while extracting tasks
// from a note, prior to being persisted as a Task row.
type TaskCandidate struct {
	Content  string     `json:"content"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	Priority Priority   `json:"priority"`
	Status   TaskStatus `json:"status"`
}

// MomentCandidate is an LLM-proposed moment surfaced while matching a
// note's content against a user's activity schemas, prior to persistence
// as a Moment row.
type MomentCandidate struct {
	ActivityName string                 `json:"activity_name"`
	Data         map[string]interface{} `json:"data"`
	Timestamp    *time.Time             `json:"timestamp,omitempty"`
}
