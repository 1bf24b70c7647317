package pipeline

import (
	"errors"
	"fmt"

	"github.com/andrifs/subpipe/internal/checkpoint"
)

// StageError is a stage-boundary failure. The checkpoint from the
// previous stage remains valid; the next run resumes from there.
type StageError struct {
	Stage checkpoint.Stage
	Video string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for %s: %v", e.Stage, e.Video, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage checkpoint.Stage, video string, err error) *StageError {
	return &StageError{Stage: stage, Video: video, Err: err}
}

// FailedStage extracts the stage from a pipeline error, or "" when err is
// not a stage failure.
func FailedStage(err error) checkpoint.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ErrAlreadyRunning is returned when another orchestrator instance holds
// the lock for the same video identity.
var ErrAlreadyRunning = errors.New("another run is already processing this video")
