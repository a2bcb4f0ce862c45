package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"transvox/internal/jobs"
	"transvox/internal/logging"
	"transvox/internal/progress"
	"transvox/internal/proctree"
	"transvox/internal/results"
)

// run is the worker loop. It is the only goroutine that executes jobs, so
// at most one pipeline process exists at any time.
func (s *Scheduler) run(ctx context.Context) {
	poll := time.Duration(s.cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-ticker.C:
		}
		for {
			job := s.dequeue()
			if job == nil {
				break
			}
			s.execute(ctx, job)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// dequeue pops the oldest queued job. Entries whose job already left the
// queued state are skipped.
func (s *Scheduler) dequeue() *jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		job := s.registry.Get(id)
		if job != nil && job.Status == jobs.StatusQueued {
			return job
		}
	}
	return nil
}

// execute drives one job to a terminal state. Whatever happens inside, the
// job never stays running after this returns.
func (s *Scheduler) execute(ctx context.Context, job *jobs.Job) {
	defer func() {
		if r := recover(); r != nil {
			s.finalize(job, func(j *jobs.Job) error {
				return j.Fail(jobs.ErrKindInternal, fmt.Sprintf("scheduler panic: %v", r), "")
			})
		}
	}()

	s.mu.Lock()
	if job.CancelRequested {
		_ = job.Cancel()
		s.archiveLocked(job)
		s.mu.Unlock()
		return
	}
	if err := job.MarkRunning(); err != nil {
		s.mu.Unlock()
		return
	}
	cfg := job.Config
	s.mu.Unlock()

	logger := s.logger.With(logging.Args(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldSubmitter, job.SubmitterID),
	)...)
	logger.Info("job started", logging.Args(
		logging.String("video", cfg.VideoPath),
		logging.String(logging.FieldEventType, "job_started"),
	)...)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		s.finalize(job, func(j *jobs.Job) error {
			return j.Fail(jobs.ErrKindSpawnFailure, fmt.Sprintf("create output directory: %v", err), "")
		})
		return
	}

	handle, err := s.runner.Start(cfg, s.launcher)
	if err != nil {
		s.finalize(job, func(j *jobs.Job) error {
			return j.Fail(jobs.ErrKindSpawnFailure, err.Error(), "")
		})
		return
	}

	s.mu.Lock()
	s.handles[job.ID] = handle
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.handles, job.ID)
		s.mu.Unlock()
	}()

	outcome := s.supervise(ctx, job, handle, logger)
	waitErr := handle.Wait()
	exitCode, _ := handle.ExitCode()

	switch {
	case outcome == outcomeCancelled:
		s.finalize(job, func(j *jobs.Job) error { return j.Cancel() })
		logger.Info("job cancelled", logging.Args(
			logging.String(logging.FieldEventType, "job_cancelled"),
		)...)
	case outcome == outcomeDaemonStop:
		s.finalize(job, func(j *jobs.Job) error {
			return j.Fail(jobs.ErrKindInternal, jobs.DaemonStopReason, "")
		})
		logger.Warn("job interrupted by shutdown", logging.Args(
			logging.String(logging.FieldEventType, "job_failed"),
		)...)
	case outcome == outcomeTimeout:
		s.finalize(job, func(j *jobs.Job) error {
			return j.Fail(jobs.ErrKindTimeout,
				fmt.Sprintf("pipeline exceeded %ds timeout", s.cfg.Workflow.JobTimeout),
				tailText(handle))
		})
		logger.Warn("job timed out", logging.Args(
			logging.String(logging.FieldEventType, "job_failed"),
		)...)
	case exitCode != 0:
		message := fmt.Sprintf("pipeline exited with status %d", exitCode)
		if exitCode == -1 && waitErr != nil {
			message = fmt.Sprintf("pipeline wait: %v", waitErr)
		}
		s.finalize(job, func(j *jobs.Job) error {
			return j.Fail(jobs.ErrKindNonZeroExit, message, tailText(handle))
		})
		logger.Warn("job failed", logging.Args(
			logging.Int("exit_code", exitCode),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.String(logging.FieldErrorHint, "inspect the output tail in the job error details"),
		)...)
	default:
		if err := results.Relocate(s.runner.StagingDir(cfg.Stem), cfg.OutputDir); err != nil {
			s.finalize(job, func(j *jobs.Job) error {
				return j.Fail(jobs.ErrKindInternal, fmt.Sprintf("relocate artifacts: %v", err), tailText(handle))
			})
			logger.Warn("artifact relocation failed", logging.Args(
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_failed"),
			)...)
			return
		}
		result, collectErr := results.Collect(cfg.OutputDir, cfg.Stem)
		if collectErr != nil {
			kind := jobs.ErrKindInternal
			if errors.Is(collectErr, results.ErrIncompleteResult) {
				kind = jobs.ErrKindIncompleteResult
			}
			s.finalize(job, func(j *jobs.Job) error {
				return j.Fail(kind, collectErr.Error(), tailText(handle))
			})
			logger.Warn("job produced no usable result", logging.Args(
				logging.Error(collectErr),
				logging.String(logging.FieldEventType, "job_failed"),
			)...)
			return
		}
		s.finalize(job, func(j *jobs.Job) error { return j.Succeed(result) })
		logger.Info("job succeeded", logging.Args(
			logging.String("final_video", result.FinalVideo),
			logging.String(logging.FieldEventType, "job_succeeded"),
		)...)
	}
}

type superviseOutcome int

const (
	outcomeExited superviseOutcome = iota
	outcomeCancelled
	outcomeTimeout
	outcomeDaemonStop
)

// supervise pumps runner output into progress updates and watches for the
// cancellation flag, the execution timeout, and daemon shutdown. It returns
// once the output channel closes, after draining every remaining line.
func (s *Scheduler) supervise(ctx context.Context, job *jobs.Job, handle *proctree.Handle, logger *slog.Logger) superviseOutcome {
	grace := time.Duration(s.cfg.Workflow.TerminateGrace) * time.Second
	cancelPoll := time.Duration(s.cfg.Workflow.CancelPollMillis) * time.Millisecond
	if cancelPoll <= 0 {
		cancelPoll = 500 * time.Millisecond
	}
	ticker := time.NewTicker(cancelPoll)
	defer ticker.Stop()

	var timeoutCh <-chan time.Time
	if s.cfg.Workflow.JobTimeout > 0 {
		timer := time.NewTimer(time.Duration(s.cfg.Workflow.JobTimeout) * time.Second)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	outcome := outcomeExited
	terminated := false
	terminate := func(o superviseOutcome) {
		if terminated {
			return
		}
		terminated = true
		outcome = o
		_ = handle.Terminate(grace)
	}

	done := ctx.Done()
	for {
		select {
		case line, ok := <-handle.Lines():
			if !ok {
				return outcome
			}
			if update, matched := progress.Classify(line); matched {
				s.mu.Lock()
				if job.UpdateProgress(update.Label(), update.Percent) {
					s.mu.Unlock()
					logger.Debug("progress", logging.Args(
						logging.String(logging.FieldStage, update.Label()),
						logging.Int("percent", update.Percent),
					)...)
					continue
				}
				s.mu.Unlock()
			}
		case <-ticker.C:
			s.mu.Lock()
			wantCancel := job.CancelRequested
			s.mu.Unlock()
			if wantCancel {
				terminate(outcomeCancelled)
			}
		case <-timeoutCh:
			timeoutCh = nil
			terminate(outcomeTimeout)
		case <-done:
			done = nil
			terminate(outcomeDaemonStop)
		}
	}
}

// finalize applies a terminal transition under the lock and archives the
// result.
func (s *Scheduler) finalize(job *jobs.Job, transition func(*jobs.Job) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.Status.IsTerminal() {
		return
	}
	if err := transition(job); err != nil {
		// Last resort so no job is ever left running.
		_ = job.Fail(jobs.ErrKindInternal, err.Error(), "")
	}
	s.archiveLocked(job)
}

func tailText(handle *proctree.Handle) string {
	return strings.Join(handle.Tail(), "\n")
}
