// cmd/retry is the administrative retry operation of spec.md §7: it moves
// a FAILED entity back to PENDING and re-enqueues it on its queue,
// bypassing the normal worker-driven transition.
//
// Usage:
//
//	robo-retry -entity note -id 42
//	robo-retry -entity task -id 7
//	robo-retry -entity activity -id 3
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/codevalley/robo-worker/internal/broker"
	"github.com/codevalley/robo-worker/internal/config"
	"github.com/codevalley/robo-worker/internal/enqueue"
	"github.com/codevalley/robo-worker/internal/storage"
	"github.com/codevalley/robo-worker/internal/storage/postgres"
	"github.com/codevalley/robo-worker/pkg/types"
)

func main() {
	log.SetPrefix("robo-retry: ")

	entity := flag.String("entity", "", "entity type: note, task, or activity")
	id := flag.Int64("id", 0, "entity id")
	flag.Parse()

	if *id <= 0 {
		log.Fatalf("-id must be a positive integer")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	redisBroker := broker.NewRedisBroker(broker.RedisConfig{
		Host:     cfg.Broker.Host,
		Port:     cfg.Broker.Port,
		DB:       cfg.Broker.DB,
		Password: cfg.Broker.Password,
		SSL:      cfg.Broker.SSL,
		Timeout:  cfg.Broker.Timeout,
	})
	defer redisBroker.Close()
	enqueuer := enqueue.New(redisBroker, cfg.Queue.JobTimeout)

	ctx := context.Background()

	var jobID string
	switch *entity {
	case "note":
		jobID, err = retryNote(ctx, postgres.NewNoteStore(db), enqueuer, *id)
	case "task":
		jobID, err = retryTask(ctx, postgres.NewTaskStore(db), enqueuer, *id)
	case "activity":
		jobID, err = retryActivity(ctx, postgres.NewActivityStore(db), enqueuer, *id)
	default:
		log.Fatalf("-entity must be one of: note, task, activity (got %q)", *entity)
	}
	if err != nil {
		log.Fatalf("retry failed: %v", err)
	}

	fmt.Printf("requeued %s %d as job %s\n", *entity, *id, jobID)
}

func retryNote(ctx context.Context, store storage.NoteStore, enqueuer *enqueue.Enqueuer, id int64) (string, error) {
	if err := store.TransitionStatus(ctx, id, types.StatusFailed, types.StatusPending); err != nil {
		return "", fmt.Errorf("transition note %d to PENDING: %w", id, err)
	}
	return enqueuer.EnqueueNote(id), nil
}

func retryTask(ctx context.Context, store storage.TaskStore, enqueuer *enqueue.Enqueuer, id int64) (string, error) {
	if err := store.TransitionStatus(ctx, id, types.StatusFailed, types.StatusPending); err != nil {
		return "", fmt.Errorf("transition task %d to PENDING: %w", id, err)
	}
	return enqueuer.EnqueueTask(id), nil
}

func retryActivity(ctx context.Context, store storage.ActivityStore, enqueuer *enqueue.Enqueuer, id int64) (string, error) {
	if err := store.TransitionStatus(ctx, id, types.StatusFailed, types.StatusPending); err != nil {
		return "", fmt.Errorf("transition activity %d to PENDING: %w", id, err)
	}
	return enqueuer.EnqueueActivity(id), nil
}
