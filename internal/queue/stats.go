package queue

import (
	"context"
	"fmt"
)

// Stats is the supplemented queue-statistics surface (SPEC_FULL.md §C.2):
// pending/active/completed/failed counts, readable without taking any
// lease, matching "Job metadata... is readable by status queries without
// taking the lease."
type Stats struct {
	Pending   int `json:"pending_jobs"`
	Active    int `json:"active_jobs"`
	Completed int `json:"completed_jobs"`
	Failed    int `json:"failed_jobs"`
}

// Stats aggregates the per-priority-band hash counters into the totals
// exposed by the queue-info endpoint.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	out := &Stats{}
	fields := map[string]*int{
		"pending":   &out.Pending,
		"active":    &out.Active,
		"completed": &out.Completed,
		"failed":    &out.Failed,
	}
	for field, dest := range fields {
		vals, err := q.rdb.HGetAll(ctx, q.statsKey(field)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		total := 0
		for _, p := range priorityBands {
			if v, ok := vals[string(p)]; ok {
				var n int
				fmt.Sscanf(v, "%d", &n)
				total += n
			}
		}
		*dest = total
	}
	return out, nil
}

// Ping checks queue connectivity for the health check surface.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Length returns the number of pending payloads across every priority
// band, cheaper than Stats when only a queue-position estimate is
// needed.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	var total int64
	for _, p := range priorityBands {
		n, err := q.rdb.LLen(ctx, q.listKey(p)).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
		}
		total += n
	}
	return total, nil
}
