package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// ActivityStore implements storage.ActivityStore against Postgres.
type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

var _ storage.ActivityStore = (*ActivityStore)(nil)

func (s *ActivityStore) Get(ctx context.Context, id int64) (*types.Activity, error) {
	a := &types.Activity{}
	var schemaRender sql.NullString
	var processedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, activity_schema, icon, color, processing_status,
		       schema_render, processed_at, created_at, updated_at
		FROM activities WHERE id = $1`, id).Scan(
		&a.ID, &a.UserID, &a.Name, &a.ActivitySchema, &a.Icon, &a.Color, &a.ProcessingStatus,
		&schemaRender, &processedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get activity %d: %w", id, err)
	}
	if schemaRender.Valid {
		a.SchemaRender = []byte(schemaRender.String)
	}
	if processedAt.Valid {
		a.ProcessedAt = &processedAt.Time
	}
	return a, nil
}

func (s *ActivityStore) Create(ctx context.Context, a *types.Activity) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO activities (user_id, name, activity_schema, icon, color, processing_status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		a.UserID, a.Name, a.ActivitySchema, a.Icon, a.Color, types.StatusPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create activity: %w", err)
	}
	return id, nil
}

func (s *ActivityStore) TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE activities SET processing_status = $1, updated_at = now()
		WHERE id = $2 AND processing_status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("postgres: transition activity %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: transition activity %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

func (s *ActivityStore) Complete(ctx context.Context, id int64, schemaRender []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET processing_status = $1, schema_render = $2, processed_at = now(), updated_at = now()
		WHERE id = $3`, types.StatusCompleted, schemaRender, id)
	if err != nil {
		return fmt.Errorf("postgres: complete activity %d: %w", id, err)
	}
	return nil
}

func (s *ActivityStore) Fail(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE activities
		SET processing_status = $1, enrichment_error = $2, updated_at = now()
		WHERE id = $3`, types.StatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("postgres: fail activity %d: %w", id, err)
	}
	return nil
}

func (s *ActivityStore) ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, activity_schema, processing_status, created_at, updated_at
		FROM activities WHERE processing_status = $1
		ORDER BY created_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activities by status: %w", err)
	}
	defer rows.Close()

	var out []*types.Activity
	for rows.Next() {
		a := &types.Activity{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.ActivitySchema, &a.ProcessingStatus, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ActivityStore) ListByUser(ctx context.Context, userID string) ([]*types.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, activity_schema, processing_status, created_at, updated_at
		FROM activities WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activities for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []*types.Activity
	for rows.Next() {
		a := &types.Activity{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.ActivitySchema, &a.ProcessingStatus, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan activity: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
