package pipeline

import (
	"fmt"

	"github.com/100starsco/invoice-ocr-pipeline/internal/job"
)

// StageError is a typed error carrying the abstract error kind and the
// stage it originated in, matching the teacher's habit of small typed
// errors (internal/ai/gemini_retry.go's GeminiError) carrying a category
// and a retryable flag instead of ad hoc string matching at call sites.
type StageError struct {
	Kind  job.ErrorKind
	Stage job.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] stage=%s: %v", e.Kind, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Retryable reports whether the queue should re-deliver the job rather
// than let it sit failed, per the error-handling design's kind table.
func (e *StageError) Retryable() bool {
	switch e.Kind {
	case job.ErrorRecognizerUnavailable, job.ErrorTransient:
		return true
	default:
		return false
	}
}

func NewStageError(kind job.ErrorKind, stage job.Stage, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}
