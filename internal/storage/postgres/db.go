// Package postgres implements the storage interfaces against a PostgreSQL
// database via database/sql and lib/pq.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Open connects to Postgres using a standard libpq connection string and
// verifies connectivity with a ping.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

const Schema = `
CREATE TABLE IF NOT EXISTS notes (
	id                SERIAL PRIMARY KEY,
	user_id           TEXT NOT NULL,
	content           TEXT NOT NULL,
	attachments       JSONB,
	processing_status TEXT NOT NULL DEFAULT 'PENDING',
	enrichment_data   JSONB,
	enrichment_error  TEXT,
	processed_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_notes_user_status ON notes (user_id, processing_status);

CREATE TABLE IF NOT EXISTS tasks (
	id                SERIAL PRIMARY KEY,
	user_id           TEXT NOT NULL,
	content           TEXT NOT NULL,
	processing_status TEXT NOT NULL DEFAULT 'PENDING',
	enrichment_data   JSONB,
	enrichment_error  TEXT,
	processed_at      TIMESTAMPTZ,
	status            TEXT NOT NULL DEFAULT 'TODO',
	priority          TEXT,
	due_date          TIMESTAMPTZ,
	parent_id         INTEGER REFERENCES tasks(id),
	note_id           INTEGER REFERENCES notes(id),
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks (user_id, processing_status);

CREATE TABLE IF NOT EXISTS activities (
	id                SERIAL PRIMARY KEY,
	user_id           TEXT NOT NULL,
	name              TEXT NOT NULL,
	activity_schema   JSONB NOT NULL,
	icon              TEXT,
	color             TEXT CHECK (color IS NULL OR color ~* '^#[0-9a-f]{6}$'),
	processing_status TEXT NOT NULL DEFAULT 'PENDING',
	schema_render     JSONB,
	enrichment_error  TEXT,
	processed_at      TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, name)
);
CREATE INDEX IF NOT EXISTS idx_activities_user_status ON activities (user_id, processing_status);

CREATE TABLE IF NOT EXISTS moments (
	id          SERIAL PRIMARY KEY,
	activity_id INTEGER NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL,
	data        JSONB NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_moments_activity ON moments (activity_id);
`
