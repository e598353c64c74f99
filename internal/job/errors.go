package job

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned by Start when the request fails validation
	ErrInvalidRequest = errors.New("invalid request")
	// ErrJobNotFound is returned for unknown or evicted job ids
	ErrJobNotFound = errors.New("job not found")
	// ErrJobFinished is returned when cancelling a job that already terminated
	ErrJobFinished = errors.New("job already finished")
	// ErrArtifactNotFound is returned for a download the job did not produce
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrShutdown is returned by Start once Shutdown has begun
	ErrShutdown = errors.New("registry is shut down")

	errCancelled = errors.New("job cancelled")
)

// StageError is a stage failure tagged with its Reason
type StageError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Failure converts the error to the value recorded on the job
func (e *StageError) Failure() *Failure {
	return &Failure{Stage: e.Reason, Message: e.Message}
}

func stageError(reason Reason, err error) *StageError {
	return &StageError{Reason: reason, Message: err.Error(), Err: err}
}
