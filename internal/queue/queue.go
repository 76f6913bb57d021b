// Package queue implements the Queue Substrate: a durable, priority-aware
// FIFO with a visibility-timeout lease and a per-payload retry counter,
// backed by Redis.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

// ErrQueueUnavailable wraps any backing-store failure into the abstract
// error kind the orchestrator maps to job.ErrorTransient/Exhausted.
var ErrQueueUnavailable = errors.New("queue: backing store unreachable")

// ErrExhausted is returned by Complete and Reclaim once a payload's retry
// counter has hit MaxRetries; the payload is discarded rather than
// re-delivered.
var ErrExhausted = errors.New("queue: retry budget exhausted")

var priorityBands = []job.Priority{
	job.PriorityUrgent,
	job.PriorityHigh,
	job.PriorityNormal,
	job.PriorityLow,
}

// Lease is the exclusive, time-bounded claim returned by Dequeue. Only
// the Complete call carrying a matching Token can retire the payload;
// letting the lease expire makes the payload re-dequeuable and advances
// its retry counter.
type Lease struct {
	Token     string
	JobID     string
	Name      string
	Attempt   int
	Deadline  time.Time
}

// Queue is a single named queue instance (e.g. "invoice-ocr"), priority
// banded internally, with Redis as the only synchronization surface
// across worker processes — mirroring the "process-scoped workers,
// queue-only ordering" model from the concurrency section of the
// specification this module implements.
type Queue struct {
	rdb             redis.UniversalClient
	name            string
	visibility      time.Duration
	maxRetries      int
	roundRobinCursor int
}

// New constructs a Queue bound to name, using rdb as the Redis client.
func New(rdb redis.UniversalClient, name string, visibilityTimeout time.Duration, maxRetries int) *Queue {
	return &Queue{rdb: rdb, name: name, visibility: visibilityTimeout, maxRetries: maxRetries}
}

func (q *Queue) listKey(p job.Priority) string   { return fmt.Sprintf("queue:%s:%s", q.name, p) }
func (q *Queue) payloadKey(jobID string) string  { return fmt.Sprintf("queue:%s:payload:%s", q.name, jobID) }
func (q *Queue) leaseKey(jobID string) string    { return fmt.Sprintf("queue:%s:lease:%s", q.name, jobID) }
func (q *Queue) retryKey(jobID string) string    { return fmt.Sprintf("queue:%s:retries:%s", q.name, jobID) }
func (q *Queue) statsKey(field string) string    { return fmt.Sprintf("queue:%s:stats:%s", q.name, field) }
func (q *Queue) enqueuedSetKey() string          { return fmt.Sprintf("queue:%s:enqueued", q.name) }

// Enqueue adds payload under jobID to the queue. Re-enqueueing a jobID
// that is already pending, leased, or has ever been admitted is a no-op
// that returns nil — this is the "a job fingerprint may be enqueued at
// most once" exclusivity guarantee from the orchestrator's design. The
// caller is not told that the jobID was already admitted, and the
// existing payload's priority is not returned.
func (q *Queue) Enqueue(ctx context.Context, jobID string, priority job.Priority, payload []byte) error {
	added, err := q.rdb.SAdd(ctx, q.enqueuedSetKey(), jobID).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if added == 0 {
		// Already enqueued at some point in this queue's lifetime (current
		// or historical); the fingerprint guarantee means we do not
		// re-admit it even if it has since completed.
		return nil
	}
	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.payloadKey(jobID), payload, 0)
	pipe.RPush(ctx, q.listKey(priority), jobID)
	pipe.HIncrBy(ctx, q.statsKey("pending"), string(priority), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// Dequeue claims the next payload, highest priority band first, checking
// every band at least once every four calls so lower bands are never
// starved outright. It returns (nil, nil, nil) when every band is
// empty. The returned Lease must be retired with Complete before
// visibilityTimeout elapses or the payload becomes re-dequeuable and its
// retry counter advances.
func (q *Queue) Dequeue(ctx context.Context) (*Lease, []byte, error) {
	q.roundRobinCursor++
	order := priorityBands
	if q.roundRobinCursor%4 == 0 {
		// Every fourth dequeue, check bands low-to-high so a sustained
		// backlog of urgent jobs cannot starve the low band forever.
		order = []job.Priority{job.PriorityLow, job.PriorityNormal, job.PriorityHigh, job.PriorityUrgent}
	}

	for _, p := range order {
		jobID, err := q.rdb.LPop(ctx, q.listKey(p)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}

		payload, err := q.rdb.Get(ctx, q.payloadKey(jobID)).Bytes()
		if err != nil {
			// Payload vanished underneath us (e.g. manual cleanup); skip.
			continue
		}

		attempt, _ := q.rdb.Get(ctx, q.retryKey(jobID)).Int()

		token := uuid.NewString()
		deadline := time.Now().Add(q.visibility)
		leaseRecord := leaseRecord{Token: token, Priority: p, Deadline: deadline}
		b, _ := json.Marshal(leaseRecord)
		if err := q.rdb.Set(ctx, q.leaseKey(jobID), b, q.visibility).Err(); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}

		pipe := q.rdb.TxPipeline()
		pipe.HIncrBy(ctx, q.statsKey("pending"), string(p), -1)
		pipe.HIncrBy(ctx, q.statsKey("active"), string(p), 1)
		pipe.Exec(ctx)

		return &Lease{Token: token, JobID: jobID, Name: q.name, Attempt: attempt, Deadline: deadline}, payload, nil
	}
	return nil, nil, nil
}

type leaseRecord struct {
	Token    string      `json:"token"`
	Priority job.Priority `json:"priority"`
	Deadline time.Time   `json:"deadline"`
}

// Outcome tells Complete whether the job finished or must be retried.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
)

// Complete retires a lease. On OutcomeSuccess the payload is discarded
// and counted in the completed stat. On OutcomeFailure the retry counter
// is incremented; if it has now reached MaxRetries the payload is
// discarded and counted failed (ErrExhausted is returned so the
// orchestrator can transition the job to failed with kind Exhausted),
// otherwise the payload is re-enqueued at the back of its original
// priority band.
func (q *Queue) Complete(ctx context.Context, lease *Lease, outcome Outcome) error {
	raw, err := q.rdb.Get(ctx, q.leaseKey(lease.JobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		// Lease already expired and possibly re-dequeued by another
		// worker; nothing to retire on our end.
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	var rec leaseRecord
	if err := json.Unmarshal(raw, &rec); err != nil || rec.Token != lease.Token {
		// Someone else holds the current lease for this job.
		return nil
	}

	pipe := q.rdb.TxPipeline()
	pipe.Del(ctx, q.leaseKey(lease.JobID))
	pipe.HIncrBy(ctx, q.statsKey("active"), string(rec.Priority), -1)

	if outcome == OutcomeSuccess {
		pipe.Del(ctx, q.payloadKey(lease.JobID))
		pipe.Del(ctx, q.retryKey(lease.JobID))
		pipe.HIncrBy(ctx, q.statsKey("completed"), string(rec.Priority), 1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return nil
	}

	attempt := lease.Attempt + 1
	if attempt >= q.maxRetries {
		pipe.Del(ctx, q.payloadKey(lease.JobID))
		pipe.Del(ctx, q.retryKey(lease.JobID))
		pipe.HIncrBy(ctx, q.statsKey("failed"), string(rec.Priority), 1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return ErrExhausted
	}

	pipe.Set(ctx, q.retryKey(lease.JobID), attempt, 0)
	pipe.RPush(ctx, q.listKey(rec.Priority), lease.JobID)
	pipe.HIncrBy(ctx, q.statsKey("pending"), string(rec.Priority), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// Reclaim sweeps leases whose visibility timeout has passed without a
// Complete call. Redis's own TTL on the lease key already does the
// expiry; Reclaim exists so a caller can proactively requeue a payload
// whose lease key has disappeared but whose payload and retry counter
// are still present, by treating it as an implicit OutcomeFailure. It is
// a supplement to, not a replacement for, the passive TTL path.
func (q *Queue) Reclaim(ctx context.Context, jobID string, priorityHint job.Priority) error {
	exists, err := q.rdb.Exists(ctx, q.leaseKey(jobID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if exists > 0 {
		return nil // still leased, nothing to reclaim
	}
	payloadExists, err := q.rdb.Exists(ctx, q.payloadKey(jobID)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	if payloadExists == 0 {
		return nil // already completed/exhausted
	}
	attempt, _ := q.rdb.Get(ctx, q.retryKey(jobID)).Int()
	if attempt+1 >= q.maxRetries {
		pipe := q.rdb.TxPipeline()
		pipe.Del(ctx, q.payloadKey(jobID))
		pipe.Del(ctx, q.retryKey(jobID))
		pipe.HIncrBy(ctx, q.statsKey("failed"), string(priorityHint), 1)
		_, err := pipe.Exec(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		return ErrExhausted
	}
	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.retryKey(jobID), attempt+1, 0)
	pipe.RPush(ctx, q.listKey(priorityHint), jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}
