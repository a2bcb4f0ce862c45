package api

import (
	"time"

	"transvox/internal/history"
	"transvox/internal/jobs"
)

// StartRequest is the submission payload.
type StartRequest struct {
	VideoPath        string  `json:"videoPath"`
	SourceLang       string  `json:"sourceLang,omitempty"`
	TargetLang       string  `json:"targetLang"`
	TranscribeEngine string  `json:"transcribeEngine,omitempty"`
	TTSEngine        string  `json:"ttsEngine,omitempty"`
	Diarization      *bool   `json:"diarization,omitempty"`
	Separation       *bool   `json:"separation,omitempty"`
	SpeedFactor      float64 `json:"speedFactor,omitempty"`
}

// JobView is the wire representation of a job snapshot.
type JobView struct {
	ID          string            `json:"id"`
	SubmitterID string            `json:"submitterId"`
	Status      string            `json:"status"`
	Stage       string            `json:"stage,omitempty"`
	Percent     int               `json:"percent"`
	VideoPath   string            `json:"videoPath"`
	TargetLang  string            `json:"targetLang"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	FinishedAt  *time.Time        `json:"finishedAt,omitempty"`
	Error       *jobs.Error       `json:"error,omitempty"`
	Result      *jobs.ResultPaths `json:"result,omitempty"`
}

// FromJob converts a scheduler snapshot into its wire form.
func FromJob(job *jobs.Job) JobView {
	return JobView{
		ID:          job.ID,
		SubmitterID: job.SubmitterID,
		Status:      string(job.Status),
		Stage:       job.StageLabel,
		Percent:     job.DisplayPercent(),
		VideoPath:   job.Config.VideoPath,
		TargetLang:  job.Config.TargetLang,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
		Error:       job.Error,
		Result:      job.Result,
	}
}

// StartResponse acknowledges an accepted submission.
type StartResponse struct {
	Job JobView `json:"job"`
}

// ConflictResponse reports an admission rejection with the blocking job.
type ConflictResponse struct {
	Error       string `json:"error"`
	ActiveJobID string `json:"activeJobId"`
}

// HistoryResponse lists archived jobs for the caller.
type HistoryResponse struct {
	Jobs []history.Record `json:"jobs"`
}

// HealthResponse reports daemon liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// WhoamiResponse echoes the resolved submitter identity along with the
// submitter's most recent job and the current queue depth.
type WhoamiResponse struct {
	UserID     string   `json:"userId"`
	QueueDepth int      `json:"queueDepth"`
	LatestJob  *JobView `json:"latestJob,omitempty"`
}

// ErrorResponse is the generic error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
