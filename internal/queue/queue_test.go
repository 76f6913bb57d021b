package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb, "test", 50*time.Millisecond, 3), mr
}

func TestEnqueueDequeueComplete(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "job-1", job.PriorityNormal, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	lease, payload, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if lease == nil {
		t.Fatal("expected a lease, got none")
	}
	if lease.JobID != "job-1" || string(payload) != `{"a":1}` {
		t.Fatalf("unexpected dequeue result: %+v %s", lease, payload)
	}

	if err := q.Complete(ctx, lease, OutcomeSuccess); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Completed != 1 || stats.Pending != 0 || stats.Active != 0 {
		t.Fatalf("unexpected stats after completion: %+v", stats)
	}
}

func TestEnqueueIsIdempotentPerFingerprint(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "dup", job.PriorityNormal, []byte("first")); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, "dup", job.PriorityNormal, []byte("second")); err != nil {
		t.Fatalf("second enqueue: %v", err)
	}

	n, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("length: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one pending payload for a re-enqueued fingerprint, got %d", n)
	}
}

func TestFIFOWithinPriorityBand(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(ctx, id, job.PriorityNormal, []byte(id)); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	var order []string
	for i := 0; i < 3; i++ {
		lease, _, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if lease == nil {
			t.Fatalf("dequeue %d: expected a lease", i)
		}
		order = append(order, lease.JobID)
	}

	want := []string{"a", "b", "c"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("FIFO order violated: got %v, want %v", order, want)
		}
	}
}

func TestRetryThenExhaustion(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, "flaky", job.PriorityNormal, []byte("payload")); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		lease, _, err := q.Dequeue(ctx)
		if err != nil || lease == nil {
			t.Fatalf("dequeue attempt %d: lease=%v err=%v", attempt, lease, err)
		}
		if err := q.Complete(ctx, lease, OutcomeFailure); err != nil {
			t.Fatalf("complete attempt %d: %v", attempt, err)
		}
	}

	// Third failure should exhaust the default max-retries=3 budget.
	lease, _, err := q.Dequeue(ctx)
	if err != nil || lease == nil {
		t.Fatalf("final dequeue: lease=%v err=%v", lease, err)
	}
	if err := q.Complete(ctx, lease, OutcomeFailure); err != ErrExhausted {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("expected one failed job after exhaustion, got %+v", stats)
	}
}

func TestPriorityOrdering(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_ = q.Enqueue(ctx, "low-job", job.PriorityLow, []byte("low"))
	_ = q.Enqueue(ctx, "urgent-job", job.PriorityUrgent, []byte("urgent"))

	lease, _, err := q.Dequeue(ctx)
	if err != nil || lease == nil {
		t.Fatalf("dequeue: lease=%v err=%v", lease, err)
	}
	if lease.JobID != "urgent-job" {
		t.Fatalf("expected urgent job to dequeue first, got %s", lease.JobID)
	}
}
