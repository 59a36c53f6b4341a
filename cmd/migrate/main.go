// cmd/migrate applies the Postgres schema. It is idempotent: every
// statement is CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS, so
// running it against an already-migrated database is a no-op.
package main

import (
	"log"

	"github.com/codevalley/robo-worker/internal/config"
	"github.com/codevalley/robo-worker/internal/storage/postgres"
)

func main() {
	log.SetPrefix("robo-migrate: ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(postgres.Schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	log.Println("schema applied")
}
