package generation

import (
	"errors"
	"fmt"
)

// Error definitions for the generation package.
var (
	ErrQueueClosed      = errors.New("admission queue closed")
	ErrMalformedCommand = errors.New("malformed command")
	ErrWorkerRunning    = errors.New("worker already running")
)

// ModelLoadError reports a failed reconciliation to a requested model.
// The previously loaded model stays active.
type ModelLoadError struct {
	ModelID string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.ModelID, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// IsModelLoad reports whether err is a ModelLoadError.
func IsModelLoad(err error) bool {
	var target *ModelLoadError
	return errors.As(err, &target)
}

// IsMalformedCommand reports whether err describes an invalid inbound command.
func IsMalformedCommand(err error) bool {
	return errors.Is(err, ErrMalformedCommand)
}

// stageError tags a failure with the worker stage it happened in.
type stageError struct {
	stage State
	err   error
}

func (e *stageError) Error() string { return string(e.stage) + ": " + e.err.Error() }

func (e *stageError) Unwrap() error { return e.err }

// IsInferenceFailure reports whether err came from the inference collaborator.
func IsInferenceFailure(err error) bool {
	var se *stageError
	return errors.As(err, &se) && se.stage == StateGenerating
}

// IsWriteFailure reports whether err came from persisting the audio.
func IsWriteFailure(err error) bool {
	var se *stageError
	return errors.As(err, &se) && se.stage == StateWriting
}
