// cmd/worker is the entry point for the long-running enrichment worker
// process. It wires Postgres storage, the Redis broker, the LLM port, and
// the dispatcher's retry policy together, then consumes all three queues
// until asked to shut down.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/codevalley/robo-worker/internal/broker"
	"github.com/codevalley/robo-worker/internal/clock"
	"github.com/codevalley/robo-worker/internal/config"
	"github.com/codevalley/robo-worker/internal/dispatcher"
	"github.com/codevalley/robo-worker/internal/enqueue"
	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/codevalley/robo-worker/internal/ratelimit"
	"github.com/codevalley/robo-worker/internal/recovery"
	"github.com/codevalley/robo-worker/internal/storage/postgres"
	"github.com/codevalley/robo-worker/internal/workers"
)

func main() {
	log.SetPrefix("robo-worker: ")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := postgres.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	notes := postgres.NewNoteStore(db)
	tasks := postgres.NewTaskStore(db)
	activities := postgres.NewActivityStore(db)
	moments := postgres.NewMomentStore(db)

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

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.LLM.MaxRequestsPerMinute,
		TokensPerMinute:   cfg.LLM.MaxTokensPerMinute,
		MaxRetries:        cfg.LLM.MaxRetries,
		BaseDelay:         cfg.LLM.RetryBaseDelay,
		MaxDelay:          cfg.LLM.RetryMaxDelay,
		Jitter:            cfg.LLM.RetryJitter,
	}, clock.Real{})

	provider := llm.Provider(getEnvDefault("LLM_PROVIDER", string(llm.ProviderAnthropic)))
	port, err := llm.NewPort(provider, cfg.LLM, limiter)
	if err != nil {
		log.Fatalf("failed to build LLM port: %v", err)
	}

	backoff := ratelimit.New(ratelimit.Config{MaxRetries: 3}, clock.Real{})
	d := dispatcher.New(redisBroker, backoff)

	noteWorker := &workers.NoteWorker{
		Notes:      notes,
		Tasks:      tasks,
		Activities: activities,
		Moments:    moments,
		Port:       port,
		Enqueuer:   enqueuer,
		Clock:      clock.Real{},
	}
	taskWorker := &workers.TaskWorker{Tasks: tasks, Port: port}
	activityWorker := &workers.ActivityWorker{Activities: activities, Port: port}

	d.Register(broker.QueueNoteEnrichment, noteWorker.Handle)
	d.Register(broker.QueueTaskEnrichment, taskWorker.Handle)
	d.Register(broker.QueueActivitySchema, activityWorker.Handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recovery.Sweep(ctx, notes, tasks, activities, enqueuer)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("received shutdown signal")
		cancel()
	}()

	log.Printf("ready — consuming queues %v", broker.AllQueues)
	if err := d.Run(ctx, broker.AllQueues); err != nil {
		log.Printf("dispatcher stopped: %v", err)
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
