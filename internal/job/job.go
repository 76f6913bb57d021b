// Package job defines the data model shared by the queue substrate, the
// pipeline orchestrator, and the result/blob adapters: Job, OCR Result,
// Text Region and Blob Reference.
package job

import "time"

// Status is one of the four terminal/non-terminal job states.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage is one of the nine sequential orchestrator states. Stage only
// ever advances forward through this list until a terminal status is
// reached; it never moves backward or skips.
type Stage string

const (
	StageInitializing    Stage = "initializing"
	StageDownloading     Stage = "downloading"
	StagePreprocessing   Stage = "preprocessing"
	StageOCRExtraction   Stage = "ocr_extraction"
	StageFieldExtraction Stage = "field_extraction"
	StagePreparingResult Stage = "preparing_results"
	StageStoringResult   Stage = "storing_results"
	StageSendingWebhook  Stage = "sending_webhook"
	StageCompleted       Stage = "completed"
)

// stageOrder fixes the sequence Stage may advance through; index is used
// to reject backward or skipping transitions.
var stageOrder = []Stage{
	StageInitializing,
	StageDownloading,
	StagePreprocessing,
	StageOCRExtraction,
	StageFieldExtraction,
	StagePreparingResult,
	StageStoringResult,
	StageSendingWebhook,
	StageCompleted,
}

// stageProgress gives the status-polling progress target for each stage,
// per the orchestrator's per-stage progress table.
var stageProgress = map[Stage]int{
	StageInitializing:    10,
	StageDownloading:     30,
	StagePreprocessing:   40,
	StageOCRExtraction:   60,
	StageFieldExtraction: 80,
	StagePreparingResult: 90,
	StageStoringResult:   95,
	StageSendingWebhook:  95,
	StageCompleted:       100,
}

func stageIndex(s Stage) int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Priority selects which of the four priority bands a job is enqueued
// into (supplemented feature, see SPEC_FULL.md §C.1).
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Type labels how much of the pipeline a job asks for (supplemented
// feature, see SPEC_FULL.md §C.3). It is carried on the job only: the
// orchestrator does not read it and always runs the full stage sequence.
type Type string

const (
	TypePreprocessing Type = "preprocessing"
	TypeOCRExtraction Type = "ocr_extraction"
	TypeFullPipeline  Type = "full_pipeline"
)

// ErrorKind classifies why a job failed, per the error handling design.
type ErrorKind string

const (
	ErrorInvalidInput          ErrorKind = "InvalidInput"
	ErrorNonDocument           ErrorKind = "NonDocument"
	ErrorRecognizerUnavailable ErrorKind = "RecognizerUnavailable"
	ErrorTransient             ErrorKind = "Transient"
	ErrorExhausted             ErrorKind = "Exhausted"
	ErrorInternal              ErrorKind = "Internal"
)

// Job is one submission, tracked end to end by the orchestrator.
type Job struct {
	JobID       string   `json:"job_id" bson:"job_id"`
	ImageURL    string   `json:"image_url" bson:"image_url"`
	SubmitterID string   `json:"user_id" bson:"submitter_id"`
	MessageID   string   `json:"message_id" bson:"message_id"`
	CallbackURL string   `json:"webhook_url" bson:"callback_url"`
	Priority    Priority `json:"priority,omitempty" bson:"priority,omitempty"`
	Type        Type     `json:"job_type,omitempty" bson:"job_type,omitempty"`

	Status   Status `json:"status" bson:"status"`
	Stage    Stage  `json:"stage" bson:"stage"`
	Progress int    `json:"progress" bson:"progress"`

	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	ProcessingTime  time.Duration `json:"processing_time_ms" bson:"processing_time_ms"`

	ResultID     string         `json:"result_id,omitempty" bson:"result_id,omitempty"`
	BlobRef      *BlobReference `json:"blob_ref,omitempty" bson:"blob_ref,omitempty"`
	ErrorKind    ErrorKind      `json:"error_kind,omitempty" bson:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty" bson:"error_message,omitempty"`
	ErrorStage   Stage          `json:"error_stage,omitempty" bson:"error_stage,omitempty"`
	RetryCount   int            `json:"retry_count" bson:"retry_count"`
}

// New creates a job in the initial queued state.
func New(jobID, imageURL, submitterID, messageID, callbackURL string) *Job {
	return &Job{
		JobID:       jobID,
		ImageURL:    imageURL,
		SubmitterID: submitterID,
		MessageID:   messageID,
		CallbackURL: callbackURL,
		Priority:    PriorityNormal,
		Type:        TypeFullPipeline,
		Status:      StatusQueued,
		Stage:       StageInitializing,
		Progress:    0,
		CreatedAt:   time.Now().UTC(),
	}
}

// AdvanceStage moves the job to the next stage. It refuses to move
// backward (ErrStageRegression) or skip stages (ErrStageSkip), preserving the orchestrator's sequencing
// invariant; terminal statuses are sticky and reject further advances.
func (j *Job) AdvanceStage(next Stage) error {
	if j.Status == StatusCompleted || j.Status == StatusFailed {
		return ErrTerminalJob
	}
	curIdx, nextIdx := stageIndex(j.Stage), stageIndex(next)
	if nextIdx < 0 {
		return ErrUnknownStage
	}
	if nextIdx < curIdx {
		return ErrStageRegression
	}
	if nextIdx > curIdx+1 {
		return ErrStageSkip
	}
	j.Stage = next
	if p, ok := stageProgress[next]; ok && p > j.Progress {
		j.Progress = p
	}
	return nil
}

// Complete marks the job completed with the given result reference.
func (j *Job) Complete(resultID string) {
	j.Status = StatusCompleted
	j.Stage = StageCompleted
	j.Progress = 100
	j.ResultID = resultID
	now := time.Now().UTC()
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.ProcessingTime = now.Sub(*j.StartedAt)
	}
}

// Fail marks the job failed at its current stage.
func (j *Job) Fail(kind ErrorKind, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ErrorStage = j.Stage
	now := time.Now().UTC()
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.ProcessingTime = now.Sub(*j.StartedAt)
	}
}

// Start records the job's transition into running state, taken by the
// worker that holds the queue lease.
func (j *Job) Start() {
	j.Status = StatusRunning
	now := time.Now().UTC()
	j.StartedAt = &now
}
