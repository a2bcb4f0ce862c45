package jobs

import "errors"

// ErrorKind classifies job failures for status queries.
type ErrorKind string

const (
	// ErrKindSpawnFailure means the pipeline runner could not be started.
	ErrKindSpawnFailure ErrorKind = "spawn_failure"
	// ErrKindNonZeroExit means the runner exited with a non-zero code.
	ErrKindNonZeroExit ErrorKind = "nonzero_exit"
	// ErrKindIncompleteResult means the runner exited 0 but the mandatory
	// final artifact was missing on disk.
	ErrKindIncompleteResult ErrorKind = "incomplete_result"
	// ErrKindTimeout means the configured execution timeout elapsed.
	ErrKindTimeout ErrorKind = "timeout"
	// ErrKindInternal means the scheduler itself faulted.
	ErrKindInternal ErrorKind = "internal"
)

var (
	// ErrNotFound reports an operation against an unknown job id.
	ErrNotFound = errors.New("job not found")
	// ErrForbidden reports an operation by a non-owner.
	ErrForbidden = errors.New("job owned by another submitter")
	// ErrTerminal reports a mutation attempt on a terminal job.
	ErrTerminal = errors.New("job already terminal")
	// ErrInvalidTransition reports a lifecycle transition the state machine
	// does not permit.
	ErrInvalidTransition = errors.New("invalid job transition")
	// ErrNotTerminal reports a purge attempt on a job still in flight.
	ErrNotTerminal = errors.New("job still active")
)

// AdmissionError rejects a submission because the submitter already has an
// active job. It is surfaced synchronously at submit time and is not a
// job-state error.
type AdmissionError struct {
	SubmitterID   string
	ExistingJobID string
}

func (e *AdmissionError) Error() string {
	return "submitter " + e.SubmitterID + " already has active job " + e.ExistingJobID
}
