// Package workerdefault supplies a concrete, swappable implementation of
// pool.Worker: a redis/go-redis/v9-backed job runner that BRPOPs across a
// prioritized queue list, matching resque's original Redis-list-as-queue
// backend. Grounded on apimgr-search's github.com/redis/go-redis/v9 usage.
package workerdefault

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/resquepool/resque-pool-go/logger"
)

// Job is one dequeued unit of work: the queue it came from and its raw
// payload, left unparsed since job-body schemas belong to whatever the
// application layer decides to enqueue (spec.md treats the job-execution
// body as an external collaborator).
type Job struct {
	Queue   string
	Payload []byte
}

// JobHandler processes one dequeued Job. Returning an error only logs;
// it does not stop RedisWorker's loop, matching resque's own behavior of
// letting individual job failures not take the worker process down.
type JobHandler func(ctx context.Context, job Job) error

// RedisWorker is the default Worker: it BRPOPs across Queues in priority
// order (first queue listed wins when multiple have ready jobs) and
// dispatches each payload to Handler, tagging every dequeue with a fresh
// correlation ID the way google/uuid is used for per-unit-of-work
// identifiers elsewhere in the corpus.
type RedisWorker struct {
	client  redis.UniversalClient
	queues  []string
	handler JobHandler
	log     *logger.Logger
}

// NewRedisWorker constructs a RedisWorker polling queues (already in
// priority order — see platform.ParseQueueKey) against client, calling
// handler for each dequeued payload.
func NewRedisWorker(client redis.UniversalClient, queues []string, handler JobHandler, log *logger.Logger) *RedisWorker {
	return &RedisWorker{client: client, queues: queues, handler: handler, log: log.WithRole("worker")}
}

// Work implements pool.Worker: it loops BRPOP-ing across w.queues with a
// timeout derived from interval, handling whatever comes back, until ctx
// is canceled.
func (w *RedisWorker) Work(ctx context.Context, interval float64) error {
	timeout := time.Duration(interval * float64(time.Second))
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := w.client.BRPop(ctx, timeout, w.queues...).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Errorf("brpop across %v: %v", w.queues, err)
			continue
		}

		// BRPop returns [key, value] for the queue it popped from.
		if len(result) != 2 {
			continue
		}
		job := Job{Queue: result[0], Payload: []byte(result[1])}
		correlationID := uuid.New().String()

		if err := w.handler(ctx, job); err != nil {
			w.log.Log(logger.Error, "job {correlation_id} from {queue} failed: "+err.Error(), map[string]any{
				"correlation_id": correlationID,
				"queue":          job.Queue,
			})
			continue
		}

		w.log.Log(logger.Debug, "job {correlation_id} from {queue} completed", map[string]any{
			"correlation_id": correlationID,
			"queue":          job.Queue,
		})
	}
}
