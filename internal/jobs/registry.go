package jobs

import (
	"sort"
	"time"
)

// Registry is the authoritative in-memory store of job records, keyed by id.
// It is not safe for concurrent use; the scheduler serializes access.
type Registry struct {
	byID map[string]*Job
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Job)}
}

// Add inserts a job record. The id must be unique.
func (r *Registry) Add(job *Job) {
	r.byID[job.ID] = job
}

// Get returns the live record for id, or nil.
func (r *Registry) Get(id string) *Job {
	return r.byID[id]
}

// Remove deletes the record for id.
func (r *Registry) Remove(id string) {
	delete(r.byID, id)
}

// Len reports the number of tracked jobs.
func (r *Registry) Len() int {
	return len(r.byID)
}

// ActiveForSubmitter returns the queued or running job for a submitter, or
// nil. This is the admission-control probe: at most one such job may exist
// per submitter at any time.
func (r *Registry) ActiveForSubmitter(submitterID string) *Job {
	var oldest *Job
	for _, job := range r.byID {
		if job.SubmitterID != submitterID || !job.Status.IsActive() {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	return oldest
}

// LatestForSubmitter returns the most recently created job for a submitter,
// terminal or not, or nil.
func (r *Registry) LatestForSubmitter(submitterID string) *Job {
	var latest *Job
	for _, job := range r.byID {
		if job.SubmitterID != submitterID {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	return latest
}

// List returns all jobs ordered newest-first, optionally filtered by status.
func (r *Registry) List(statuses ...Status) []*Job {
	var filter map[Status]struct{}
	if len(statuses) > 0 {
		filter = make(map[Status]struct{}, len(statuses))
		for _, status := range statuses {
			filter[status] = struct{}{}
		}
	}
	out := make([]*Job, 0, len(r.byID))
	for _, job := range r.byID {
		if filter != nil {
			if _, ok := filter[job.Status]; !ok {
				continue
			}
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// CountActive reports how many jobs are queued or running.
func (r *Registry) CountActive() int {
	count := 0
	for _, job := range r.byID {
		if job.Status.IsActive() {
			count++
		}
	}
	return count
}

// NewJob builds a queued job record with a fresh timestamp pair.
func NewJob(id, submitterID string, cfg Config) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          id,
		SubmitterID: submitterID,
		Config:      cfg,
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
