// Package dispatcher wraps a broker.Broker with the retry/backoff policy
// of §4.2: each registered handler is invoked synchronously, and on a
// retryable failure the dispatcher retries in-process with exponential
// backoff (base 2s, factor 2, jitter +-20%, cap 60s) before giving up and
// letting the broker mark the job failed.
package dispatcher

import (
	"context"
	"errors"
	"log"

	"github.com/codevalley/robo-worker/internal/broker"
	"github.com/codevalley/robo-worker/internal/ratelimit"
)

// RetryableError is implemented by handler errors that carry their own
// retry disposition (e.g. *llm.Error). Errors that don't implement it are
// treated as retryable, matching llm.ClassifyForRetry's default.
type RetryableError interface {
	error
	Retryable() bool
}

// Dispatcher registers one raw handler per queue and wraps each with the
// backoff policy before handing the composed registry to the broker.
type Dispatcher struct {
	broker     broker.Broker
	maxRetries int
	backoff    *ratelimit.Limiter
	handlers   map[string]broker.Handler
}

// New builds a Dispatcher. backoff supplies the exponential-backoff
// schedule via its WithRetry helper, reused here exactly as the LLM port
// reuses it, since both are "retry a blocking call with backoff+jitter".
func New(b broker.Broker, backoff *ratelimit.Limiter) *Dispatcher {
	return &Dispatcher{
		broker:   b,
		backoff:  backoff,
		handlers: make(map[string]broker.Handler),
	}
}

// Register associates a queue name with the handler that processes its
// jobs. Call before Run.
func (d *Dispatcher) Register(queue string, handler broker.Handler) {
	d.handlers[queue] = handler
}

// Run blocks, consuming every registered queue until ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, queues []string) error {
	registry := make(broker.HandlerRegistry, len(d.handlers))
	for queue, handler := range d.handlers {
		registry[queue] = d.withRetry(queue, handler)
	}
	return d.broker.StartWorker(ctx, queues, registry)
}

// withRetry wraps handler so that a retryable error is retried in-process
// with backoff before the job is reported failed to the broker.
func (d *Dispatcher) withRetry(queue string, handler broker.Handler) broker.Handler {
	return func(payload []byte) error {
		attempt := 0
		err := d.backoff.WithRetry(context.Background(), classify, func() error {
			attempt++
			herr := handler(payload)
			if herr != nil {
				log.Printf("dispatcher: queue %s attempt %d failed: %v", queue, attempt, herr)
			}
			return herr
		})
		return err
	}
}

func classify(err error) bool {
	var retryable RetryableError
	if errors.As(err, &retryable) {
		return retryable.Retryable()
	}
	return true
}
