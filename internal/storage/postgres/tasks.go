package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// TaskStore implements storage.TaskStore against Postgres.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

var _ storage.TaskStore = (*TaskStore)(nil)

func (s *TaskStore) Get(ctx context.Context, id int64) (*types.Task, error) {
	t := &types.Task{}
	var priority sql.NullString
	var dueDate sql.NullTime
	var parentID, noteID sql.NullInt64
	var enrichment sql.NullString
	var processedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, processing_status, enrichment_data, processed_at,
		       status, priority, due_date, parent_id, note_id, created_at, updated_at
		FROM tasks WHERE id = $1`, id).Scan(
		&t.ID, &t.UserID, &t.Content, &t.ProcessingStatus, &enrichment, &processedAt,
		&t.Status, &priority, &dueDate, &parentID, &noteID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get task %d: %w", id, err)
	}
	if enrichment.Valid {
		t.EnrichmentData = []byte(enrichment.String)
	}
	if processedAt.Valid {
		t.ProcessedAt = &processedAt.Time
	}
	if priority.Valid {
		p := types.Priority(priority.String)
		t.Priority = &p
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.Time
	}
	if parentID.Valid {
		t.ParentID = &parentID.Int64
	}
	if noteID.Valid {
		t.NoteID = &noteID.Int64
	}
	return t, nil
}

func (s *TaskStore) Create(ctx context.Context, t *types.Task) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, content, processing_status, status, priority, due_date, parent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		t.UserID, t.Content, types.StatusPending, orDefault(t.Status, types.TaskStatusTodo),
		t.Priority, t.DueDate, t.ParentID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create task: %w", err)
	}
	return id, nil
}

func (s *TaskStore) CreateDerived(ctx context.Context, userID string, noteID int64, candidate types.TaskCandidate) (int64, error) {
	var id int64
	status := candidate.Status
	if status == "" {
		status = types.TaskStatusTodo
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tasks (user_id, content, processing_status, status, priority, due_date, note_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		userID, candidate.Content, types.StatusPending, status, candidate.Priority, candidate.DueDate, noteID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create derived task for note %d: %w", noteID, err)
	}
	return id, nil
}

func (s *TaskStore) TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET processing_status = $1, updated_at = now()
		WHERE id = $2 AND processing_status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("postgres: transition task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: transition task %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

func (s *TaskStore) Complete(ctx context.Context, id int64, enrichmentData []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET processing_status = $1, enrichment_data = $2, processed_at = now(), updated_at = now()
		WHERE id = $3`, types.StatusCompleted, enrichmentData, id)
	if err != nil {
		return fmt.Errorf("postgres: complete task %d: %w", id, err)
	}
	return nil
}

func (s *TaskStore) Fail(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET processing_status = $1, enrichment_error = $2, updated_at = now()
		WHERE id = $3`, types.StatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("postgres: fail task %d: %w", id, err)
	}
	return nil
}

func (s *TaskStore) ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, processing_status, status, created_at, updated_at
		FROM tasks WHERE processing_status = $1
		ORDER BY created_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tasks by status: %w", err)
	}
	defer rows.Close()

	var out []*types.Task
	for rows.Next() {
		t := &types.Task{}
		if err := rows.Scan(&t.ID, &t.UserID, &t.Content, &t.ProcessingStatus, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *TaskStore) ApplySuggestions(ctx context.Context, id int64, priority *types.Priority, dueDate *time.Time) error {
	if priority == nil && dueDate == nil {
		return nil
	}
	if priority != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET priority = $1, updated_at = now() WHERE id = $2`, *priority, id); err != nil {
			return fmt.Errorf("postgres: apply priority suggestion to task %d: %w", id, err)
		}
	}
	if dueDate != nil {
		if _, err := s.db.ExecContext(ctx, `UPDATE tasks SET due_date = $1, updated_at = now() WHERE id = $2`, *dueDate, id); err != nil {
			return fmt.Errorf("postgres: apply due_date suggestion to task %d: %w", id, err)
		}
	}
	return nil
}

func orDefault(s types.TaskStatus, def types.TaskStatus) types.TaskStatus {
	if s == "" {
		return def
	}
	return s
}
