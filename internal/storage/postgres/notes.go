package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// NoteStore implements storage.NoteStore against Postgres.
type NoteStore struct {
	db *sql.DB
}

func NewNoteStore(db *sql.DB) *NoteStore {
	return &NoteStore{db: db}
}

var _ storage.NoteStore = (*NoteStore)(nil)

func (s *NoteStore) Get(ctx context.Context, id int64) (*types.Note, error) {
	n := &types.Note{}
	var attachments sql.NullString
	var enrichment sql.NullString
	var processedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, content, attachments, processing_status,
		       enrichment_data, processed_at, created_at, updated_at
		FROM notes WHERE id = $1`, id).Scan(
		&n.ID, &n.UserID, &n.Content, &attachments, &n.ProcessingStatus,
		&enrichment, &processedAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get note %d: %w", id, err)
	}
	if attachments.Valid && attachments.String != "" {
		if err := json.Unmarshal([]byte(attachments.String), &n.Attachments); err != nil {
			return nil, fmt.Errorf("postgres: decode attachments for note %d: %w", id, err)
		}
	}
	if enrichment.Valid {
		n.EnrichmentData = []byte(enrichment.String)
	}
	if processedAt.Valid {
		n.ProcessedAt = &processedAt.Time
	}
	return n, nil
}

func (s *NoteStore) Create(ctx context.Context, n *types.Note) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (user_id, content, processing_status)
		VALUES ($1, $2, $3) RETURNING id`,
		n.UserID, n.Content, types.StatusPending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create note: %w", err)
	}
	return id, nil
}

func (s *NoteStore) TransitionStatus(ctx context.Context, id int64, from, to types.ProcessingStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notes SET processing_status = $1, updated_at = now()
		WHERE id = $2 AND processing_status = $3`, to, id, from)
	if err != nil {
		return fmt.Errorf("postgres: transition note %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: transition note %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrConflict
	}
	return nil
}

func (s *NoteStore) Complete(ctx context.Context, id int64, enrichmentData []byte) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET processing_status = $1, enrichment_data = $2, processed_at = now(), updated_at = now()
		WHERE id = $3`, types.StatusCompleted, enrichmentData, id)
	if err != nil {
		return fmt.Errorf("postgres: complete note %d: %w", id, err)
	}
	return nil
}

func (s *NoteStore) Fail(ctx context.Context, id int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE notes
		SET processing_status = $1, enrichment_error = $2, updated_at = now()
		WHERE id = $3`, types.StatusFailed, reason, id)
	if err != nil {
		return fmt.Errorf("postgres: fail note %d: %w", id, err)
	}
	return nil
}

func (s *NoteStore) ListByStatus(ctx context.Context, status types.ProcessingStatus, limit int) ([]*types.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, processing_status, created_at, updated_at
		FROM notes WHERE processing_status = $1
		ORDER BY created_at ASC LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list notes by status: %w", err)
	}
	defer rows.Close()

	var out []*types.Note
	for rows.Next() {
		n := &types.Note{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &n.ProcessingStatus, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
