package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

// StageLog is one recorded stage's timing, adapted from the teacher's
// StepLog — the same shape, generalized from "AI call accounting" to
// "pipeline stage accounting".
type StageLog struct {
	Name      string
	StartTime time.Time
	Duration  time.Duration
	Status    string // "success", "failed", "skipped"
	Error     string
}

// JobContext tracks one job's stage-by-stage timing and emits the same
// start/end/summary log lines the teacher's RequestContext does for AI
// calls, generalized to pipeline stages.
type JobContext struct {
	JobID            string
	StartTime        time.Time
	Stages           []StageLog
	currentStage     string
	currentStageStart time.Time
}

// NewJobContext begins tracking jobID.
func NewJobContext(jobID string) *JobContext {
	now := time.Now()
	log.Printf("[%s] starting job at %s", jobID, now.Format(time.RFC3339))
	return &JobContext{JobID: jobID, StartTime: now}
}

// StartStage begins timing a named stage.
func (jc *JobContext) StartStage(name string) {
	jc.currentStage = name
	jc.currentStageStart = time.Now()
	log.Printf("[%s] stage %s: started", jc.JobID, name)
}

// EndStage closes out the current stage with a status and optional error.
func (jc *JobContext) EndStage(status, errMsg string) {
	d := time.Since(jc.currentStageStart)
	jc.Stages = append(jc.Stages, StageLog{
		Name:      jc.currentStage,
		StartTime: jc.currentStageStart,
		Duration:  d,
		Status:    status,
		Error:     errMsg,
	})
	log.Printf("[%s] stage %s: %s in %s", jc.JobID, jc.currentStage, status, d)
}

// StageTimingsMS returns every recorded stage's duration in milliseconds,
// for inclusion in OCRMetadata.
func (jc *JobContext) StageTimingsMS() map[string]int64 {
	out := make(map[string]int64, len(jc.Stages))
	for _, s := range jc.Stages {
		out[s.Name] = s.Duration.Milliseconds()
	}
	return out
}

// Summary logs a final one-line summary, mirroring GetSummary's closing
// log line in the teacher's RequestContext.
func (jc *JobContext) Summary() string {
	total := time.Since(jc.StartTime)
	s := fmt.Sprintf("[%s] job finished in %s across %d stages", jc.JobID, total, len(jc.Stages))
	log.Print(s)
	return s
}

var _ = job.StagePreprocessing // keeps the job import path stable for Stage-typed callers of this package
