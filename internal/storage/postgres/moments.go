package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/pkg/types"
)

// MomentStore implements storage.MomentStore against Postgres.
type MomentStore struct {
	db *sql.DB
}

func NewMomentStore(db *sql.DB) *MomentStore {
	return &MomentStore{db: db}
}

var _ storage.MomentStore = (*MomentStore)(nil)

func (s *MomentStore) Create(ctx context.Context, m *types.Moment) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO moments (activity_id, user_id, data, timestamp)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		m.ActivityID, m.UserID, m.Data, m.Timestamp).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: create moment: %w", err)
	}
	return id, nil
}
