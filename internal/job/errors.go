package job

import "errors"

var (
	ErrTerminalJob      = errors.New("job: cannot transition a completed or failed job")
	ErrUnknownStage     = errors.New("job: unknown stage")
	ErrStageRegression  = errors.New("job: stage cannot move backward")
	ErrStageSkip        = errors.New("job: stage cannot skip ahead")
)
