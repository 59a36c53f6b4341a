package broker

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "robo"

// RedisConfig configures the RedisBroker's connection.
type RedisConfig struct {
	Host     string
	Port     int
	DB       int
	Password string
	SSL      bool
	Timeout  time.Duration
}

// RedisBroker implements Broker against Redis lists (one per queue, FIFO
// via LPUSH/BRPOP) and a hash per job carrying status and metadata.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker dials Redis per cfg. The connection is not verified until
// the first call; QueueHealth and Enqueue degrade gracefully if it never
// comes up.
func NewRedisBroker(cfg RedisConfig) *RedisBroker {
	opts := &redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.Timeout,
	}
	if cfg.SSL {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &RedisBroker{client: redis.NewClient(opts)}
}

// NewRedisBrokerFromClient wraps an existing client, e.g. one pointed at
// miniredis in tests.
func NewRedisBrokerFromClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

var _ Broker = (*RedisBroker)(nil)

func queueKey(queue string) string   { return fmt.Sprintf("%s:queue:%s", keyPrefix, queue) }
func jobKey(jobID string) string     { return fmt.Sprintf("%s:job:%s", keyPrefix, jobID) }
func inQueueKey(jobID string) string { return fmt.Sprintf("%s:inqueue:%s", keyPrefix, jobID) }
func failedKey(queue string) string  { return fmt.Sprintf("%s:failed:%s", keyPrefix, queue) }

// maxTrackedFailures bounds the per-queue failed-job list so QueueHealth's
// FailedCount stays cheap to compute; it is a recent-failures counter, not
// a full audit log (FetchStatus/the job hash is the audit trail).
const maxTrackedFailures = 1000

func (b *RedisBroker) Enqueue(queue string, payload []byte, opts EnqueueOptions) (string, bool) {
	opts = opts.withDefaults()
	jobID := opts.JobID
	if jobID == "" {
		jobID = randomID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metaJSON, _ := json.Marshal(opts.Meta)
	fields := map[string]interface{}{
		"queue":       queue,
		"status":      string(StatusQueued),
		"payload":     payload,
		"created_at":  time.Now().Unix(),
		"meta":        string(metaJSON),
		"job_timeout": int64(opts.JobTimeout.Seconds()),
	}
	if err := b.client.HSet(ctx, jobKey(jobID), fields).Err(); err != nil {
		return "", false
	}
	b.client.Expire(ctx, jobKey(jobID), opts.ResultTTL)

	// Deterministic ids collapse: only push onto the list once per
	// distinct enqueue of a not-yet-queued id.
	claimed, err := b.client.SetNX(ctx, inQueueKey(jobID), "1", opts.TTLInQueue).Result()
	if err != nil {
		return "", false
	}
	if claimed {
		if err := b.client.LPush(ctx, queueKey(queue), jobID).Err(); err != nil {
			return "", false
		}
	}
	return jobID, true
}

func (b *RedisBroker) FetchStatus(jobID string) (*JobRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	values, err := b.client.HGetAll(ctx, jobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("broker: fetch status: %w", err)
	}
	if len(values) == 0 {
		return &JobRecord{JobID: jobID, Status: StatusNotFound}, nil
	}

	rec := &JobRecord{
		JobID:     jobID,
		Queue:     values["queue"],
		Status:    Status(values["status"]),
		Payload:   []byte(values["payload"]),
		LastError: values["last_error"],
	}
	if ts, err := strconv.ParseInt(values["created_at"], 10, 64); err == nil {
		rec.CreatedAt = time.Unix(ts, 0)
	}
	if ts, err := strconv.ParseInt(values["ended_at"], 10, 64); err == nil && ts > 0 {
		t := time.Unix(ts, 0)
		rec.EndedAt = &t
	}
	if raw := values["meta"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &rec.Meta)
	}
	rec.JobTimeout = DefaultJobTimeout
	if secs, err := strconv.ParseInt(values["job_timeout"], 10, 64); err == nil && secs > 0 {
		rec.JobTimeout = time.Duration(secs) * time.Second
	}
	return rec, nil
}

// QueueHealth reports PendingCount and FailedCount from Redis directly.
// ScheduledCount and WorkerCount stay zero regardless of reachability:
// this broker has no delayed-job scheduler (no zset of scheduled-for
// timestamps) and no worker heartbeat registry, so there is nothing to
// count for either — see DESIGN.md.
func (b *RedisBroker) QueueHealth(queue string) QueueStats {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	length, err := b.client.LLen(ctx, queueKey(queue)).Result()
	if err != nil {
		return QueueStats{Unreachable: true}
	}
	failed, err := b.client.LLen(ctx, failedKey(queue)).Result()
	if err != nil {
		failed = 0
	}
	return QueueStats{
		PendingCount: int(length),
		FailedCount:  int(failed),
		IsEmpty:      length == 0,
	}
}

// StartWorker pulls jobs round-robin across queues via BRPOP and
// dispatches each to its registered handler, marking the job finished or
// failed in its hash afterward. It exits when ctx is canceled, finishing
// any in-flight job first.
func (b *RedisBroker) StartWorker(ctx context.Context, queues []string, handlers HandlerRegistry) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := b.client.BRPop(ctx, time.Second, queueListKeys(queues)...).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			time.Sleep(time.Second)
			continue
		}

		queue := queueNameFromKey(result[0])
		jobID := result[1]
		b.dispatchOne(ctx, queue, jobID, handlers)
	}
}

// dispatchOne runs handler against jobID's payload under a job_timeout
// watchdog (§4.1/§4.2 item 2/§5): if the handler hasn't returned by the
// job's job_timeout, the job is marked failed on expiry rather than left
// to hang forever. The handler goroutine itself is abandoned — restarting
// it is the worker process's job, not this call's.
func (b *RedisBroker) dispatchOne(ctx context.Context, queue, jobID string, handlers HandlerRegistry) {
	// Bookkeeping writes must land even if ctx is canceled while the job
	// runs (shutdown finishes the in-flight job, including its status).
	ctx = context.WithoutCancel(ctx)
	handler, ok := handlers[queue]
	b.client.Del(ctx, inQueueKey(jobID))
	b.client.HSet(ctx, jobKey(jobID), "status", string(StatusStarted))

	if !ok {
		b.finish(ctx, queue, jobID, fmt.Errorf("broker: no handler registered for queue %q", queue))
		return
	}

	rec, _ := b.FetchStatus(jobID)
	var payload []byte
	timeout := DefaultJobTimeout
	if rec != nil {
		payload = rec.Payload
		if rec.JobTimeout > 0 {
			timeout = rec.JobTimeout
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- handler(payload)
	}()

	select {
	case err := <-done:
		b.finish(ctx, queue, jobID, err)
	case <-time.After(timeout):
		b.finish(ctx, queue, jobID, fmt.Errorf("broker: job %s on queue %s exceeded job_timeout of %s", jobID, queue, timeout))
	}
}

func (b *RedisBroker) finish(ctx context.Context, queue, jobID string, err error) {
	status := StatusFinished
	lastErr := ""
	if err != nil {
		status = StatusFailed
		lastErr = err.Error()
		b.client.LPush(ctx, failedKey(queue), jobID)
		b.client.LTrim(ctx, failedKey(queue), 0, maxTrackedFailures-1)
	}
	b.client.HSet(ctx, jobKey(jobID), map[string]interface{}{
		"status":     string(status),
		"ended_at":   time.Now().Unix(),
		"last_error": lastErr,
	})
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

func queueListKeys(queues []string) []string {
	keys := make([]string, len(queues))
	for i, q := range queues {
		keys[i] = queueKey(q)
	}
	return keys
}

func queueNameFromKey(key string) string {
	prefix := keyPrefix + ":queue:"
	if len(key) > len(prefix) {
		return key[len(prefix):]
	}
	return key
}

func randomID() string {
	return uuid.NewString()
}
