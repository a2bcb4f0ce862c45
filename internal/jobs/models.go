package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// DaemonStopReason is the error message set on the running job when the
// daemon shuts down underneath it.
const DaemonStopReason = "daemon stopped"

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether a status counts against admission control.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusRunning
}

// Config is the immutable snapshot of run parameters captured at submission.
// The scheduler never re-reads external configuration for a job after
// enqueue; everything the pipeline invocation needs lives here.
type Config struct {
	VideoPath        string
	SourceLang       string
	TargetLang       string
	TranscribeEngine string
	TTSEngine        string
	Diarization      bool
	Separation       bool
	SpeedFactor      float64 // 0 means unset
	OutputDir        string  // deterministic artifact namespace for this job
	Stem             string  // video filename without extension
}

// ResultPaths holds the artifact paths attached to a succeeded job.
// Optional artifacts are empty when absent on disk.
type ResultPaths struct {
	OutputDir     string `json:"output_dir"`
	InitialSRT    string `json:"initial_srt,omitempty"`
	MergedSRT     string `json:"merged_srt,omitempty"`
	TranslatedSRT string `json:"translated_srt,omitempty"`
	FinalVideo    string `json:"final_video,omitempty"`
}

// Error describes why a job failed. Message is the short human-readable
// reason; Details carries captured diagnostic output from the pipeline.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// Job is the unit of work tracked by the registry.
type Job struct {
	ID          string
	SubmitterID string
	Config      Config

	Status          Status
	StageLabel      string
	Percent         int
	CancelRequested bool

	CreatedAt  time.Time
	UpdatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time

	Result *ResultPaths
	Error  *Error
}

// Clone returns a deep copy safe to hand to callers outside the scheduler
// lock.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.StartedAt != nil {
		started := *j.StartedAt
		cp.StartedAt = &started
	}
	if j.FinishedAt != nil {
		finished := *j.FinishedAt
		cp.FinishedAt = &finished
	}
	if j.Result != nil {
		result := *j.Result
		cp.Result = &result
	}
	if j.Error != nil {
		jobErr := *j.Error
		cp.Error = &jobErr
	}
	return &cp
}

// DisplayPercent reports progress the way status queries surface it:
// defined only while running or succeeded, zero otherwise.
func (j *Job) DisplayPercent() int {
	switch j.Status {
	case StatusRunning, StatusSucceeded:
		return j.Percent
	default:
		return 0
	}
}

// UpdateProgress records a progress observation. Regressions are dropped so
// a malformed or repeated runner line can never move the display backwards.
func (j *Job) UpdateProgress(stage string, percent int) bool {
	if j.Status != StatusRunning {
		return false
	}
	if percent < j.Percent {
		return false
	}
	j.StageLabel = stage
	j.Percent = percent
	j.UpdatedAt = time.Now().UTC()
	return true
}

// MarkRunning transitions a queued job to running.
func (j *Job) MarkRunning() error {
	if j.Status != StatusQueued {
		return ErrInvalidTransition
	}
	now := time.Now().UTC()
	j.Status = StatusRunning
	j.Percent = 0
	j.StartedAt = &now
	j.UpdatedAt = now
	return nil
}

// Succeed transitions the job to its successful terminal state.
func (j *Job) Succeed(result ResultPaths) error {
	if err := j.ensureMutable(); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.Status = StatusSucceeded
	j.Percent = 100
	j.StageLabel = "done"
	j.Result = &result
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// Fail transitions the job to the failed terminal state.
func (j *Job) Fail(kind ErrorKind, message, details string) error {
	if err := j.ensureMutable(); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.Status = StatusFailed
	j.Error = &Error{Kind: kind, Message: message, Details: details}
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// Cancel transitions the job to the cancelled terminal state.
func (j *Job) Cancel() error {
	if err := j.ensureMutable(); err != nil {
		return err
	}
	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.StageLabel = "cancelled"
	j.FinishedAt = &now
	j.UpdatedAt = now
	return nil
}

// RequestCancel sets the cooperative cancellation flag. It is set once and
// never cleared.
func (j *Job) RequestCancel() {
	if !j.CancelRequested {
		j.CancelRequested = true
		j.UpdatedAt = time.Now().UTC()
	}
}

func (j *Job) ensureMutable() error {
	if j.Status.IsTerminal() {
		return ErrTerminal
	}
	return nil
}
