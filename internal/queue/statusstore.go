package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

// statusTTL keeps a completed/failed job's status readable for a while
// after the lease retires, without growing Redis without bound.
const statusTTL = 24 * time.Hour

// StatusStore holds the job metadata readable "without contending for
// the lease": only the lease holder writes it, and status queries read
// the latest committed value, per the orchestrator's status-query rule.
type StatusStore struct {
	rdb  redis.UniversalClient
	name string
}

// NewStatusStore builds a StatusStore sharing rdb with a Queue of the
// same name.
func NewStatusStore(rdb redis.UniversalClient, name string) *StatusStore {
	return &StatusStore{rdb: rdb, name: name}
}

func (s *StatusStore) key(jobID string) string {
	return fmt.Sprintf("queue:%s:status:%s", s.name, jobID)
}

// Set commits j's current state, called by the lease holder after every
// stage transition.
func (s *StatusStore) Set(ctx context.Context, j *job.Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to encode job status: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(j.JobID), b, statusTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	return nil
}

// Get reads a job's latest committed status, implementing the
// api.JobLookup capability.
func (s *StatusStore) Get(ctx context.Context, jobID string) (*job.Job, error) {
	raw, err := s.rdb.Get(ctx, s.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueueUnavailable, err)
	}
	var j job.Job
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("failed to decode job status: %w", err)
	}
	return &j, nil
}

// ErrNotFound is returned by Get when no status record exists for a job_id.
var ErrNotFound = errors.New("queue: no status record for job_id")
