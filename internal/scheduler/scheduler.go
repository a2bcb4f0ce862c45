package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"transvox/internal/config"
	"transvox/internal/history"
	"transvox/internal/jobs"
	"transvox/internal/logging"
	"transvox/internal/proctree"
	"transvox/internal/runner"
)

// ErrStopped reports an operation against a scheduler that is shutting down.
var ErrStopped = errors.New("scheduler stopped")

// Option customizes scheduler construction.
type Option func(*Scheduler)

// WithLauncher injects a custom process launcher (primarily for tests).
func WithLauncher(launcher runner.Launcher) Option {
	return func(s *Scheduler) {
		if launcher != nil {
			s.launcher = launcher
		}
	}
}

// Scheduler admits, queues, and executes dubbing jobs one at a time.
type Scheduler struct {
	cfg      *config.Config
	logger   *slog.Logger
	runner   *runner.Runner
	launcher runner.Launcher
	archive  *history.Store

	mu       sync.Mutex
	registry *jobs.Registry
	queue    []string
	handles  map[string]*proctree.Handle
	stopped  bool

	wake chan struct{}

	cancelRun context.CancelFunc
	workerWG  sync.WaitGroup
}

// New constructs a scheduler. The history store may be nil; terminal jobs
// are then kept only in memory.
func New(cfg *config.Config, logger *slog.Logger, archive *history.Store, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "scheduler"),
		runner:   runner.New(cfg.Pipeline),
		launcher: runner.ProcessLauncher{},
		archive:  archive,
		registry: jobs.NewRegistry(),
		handles:  make(map[string]*proctree.Handle),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker loop. It returns immediately; jobs execute in
// the background until Close.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRun = cancel
	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.run(runCtx)
	}()
}

// Close stops admission, tears down any live process tree, fails the
// running job, and waits for the worker to exit.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.workerWG.Wait()

	// Fail whatever remained queued; nothing will ever run it.
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.queue {
		job := s.registry.Get(id)
		if job == nil || job.Status != jobs.StatusQueued {
			continue
		}
		if err := job.Fail(jobs.ErrKindInternal, jobs.DaemonStopReason, ""); err == nil {
			s.archiveLocked(job)
		}
	}
	s.queue = nil
}

// Submit validates admission and enqueues a job atomically. The returned
// snapshot reflects the queued state.
func (s *Scheduler) Submit(submitterID string, cfg jobs.Config) (*jobs.Job, error) {
	if strings.TrimSpace(submitterID) == "" {
		return nil, errors.New("submitter id required")
	}
	if cfg.VideoPath == "" {
		return nil, errors.New("video path required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil, ErrStopped
	}
	if existing := s.registry.ActiveForSubmitter(submitterID); existing != nil {
		return nil, &jobs.AdmissionError{SubmitterID: submitterID, ExistingJobID: existing.ID}
	}

	id := uuid.NewString()
	if cfg.Stem == "" {
		base := filepath.Base(cfg.VideoPath)
		cfg.Stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if cfg.TranscribeEngine == "" {
		cfg.TranscribeEngine = s.cfg.Pipeline.TranscribeEngine
	}
	if cfg.TTSEngine == "" {
		cfg.TTSEngine = s.cfg.Pipeline.TTSEngine
	}
	cfg.OutputDir = s.cfg.JobOutputDir(submitterID, id, cfg.Stem)

	job := jobs.NewJob(id, submitterID, cfg)
	s.registry.Add(job)
	s.queue = append(s.queue, id)

	s.logger.Info("job queued", logging.Args(
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldSubmitter, submitterID),
		logging.String("video", cfg.VideoPath),
		logging.String(logging.FieldEventType, "job_queued"),
	)...)

	s.signalWake()
	return job.Clone(), nil
}

// Status returns a snapshot of the submitter's job.
func (s *Scheduler) Status(submitterID, jobID string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.lookupLocked(submitterID, jobID)
	if err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// QueueDepth reports how many jobs are waiting to run.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Latest returns the submitter's most recent job, terminal or not.
func (s *Scheduler) Latest(submitterID string) *jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.LatestForSubmitter(submitterID).Clone()
}

// List returns snapshots of all tracked jobs, newest first.
func (s *Scheduler) List(statuses ...jobs.Status) []*jobs.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.registry.List(statuses...)
	out := make([]*jobs.Job, 0, len(live))
	for _, job := range live {
		out = append(out, job.Clone())
	}
	return out
}

// Cancel requests cancellation of the submitter's job. Cancelling a job
// that already reached a terminal state is a no-op, not an error. A queued
// job is finalized here; a running job only gets the flag, the worker
// observes it and performs the teardown.
func (s *Scheduler) Cancel(submitterID, jobID string) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, err := s.lookupLocked(submitterID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job.Clone(), nil
	}

	job.RequestCancel()
	if job.Status == jobs.StatusQueued {
		s.removeFromQueueLocked(job.ID)
		if err := job.Cancel(); err != nil {
			return nil, err
		}
		s.archiveLocked(job)
		s.logger.Info("queued job cancelled", logging.Args(
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldSubmitter, submitterID),
			logging.String(logging.FieldEventType, "job_cancelled"),
		)...)
	} else {
		s.logger.Info("cancellation requested", logging.Args(
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldSubmitter, submitterID),
			logging.String(logging.FieldEventType, "cancel_requested"),
		)...)
	}
	return job.Clone(), nil
}

// Purge removes a terminal job from the registry and the archive. Purging
// an active job is refused.
func (s *Scheduler) Purge(ctx context.Context, submitterID, jobID string) error {
	s.mu.Lock()
	job, err := s.lookupLocked(submitterID, jobID)
	if err != nil {
		s.mu.Unlock()
		// Allow purging archived jobs that aged out of the registry.
		if errors.Is(err, jobs.ErrNotFound) && s.archive != nil {
			return s.purgeArchived(ctx, submitterID, jobID)
		}
		return err
	}
	if !job.Status.IsTerminal() {
		s.mu.Unlock()
		return jobs.ErrNotTerminal
	}
	s.registry.Remove(jobID)
	s.mu.Unlock()

	if s.archive != nil {
		if _, err := s.archive.Delete(ctx, jobID); err != nil {
			return err
		}
	}
	return s.removeArtifacts(submitterID, jobID)
}

func (s *Scheduler) purgeArchived(ctx context.Context, submitterID, jobID string) error {
	record, err := s.archive.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if record == nil {
		return jobs.ErrNotFound
	}
	if record.SubmitterID != submitterID {
		return jobs.ErrForbidden
	}
	if _, err := s.archive.Delete(ctx, jobID); err != nil {
		return err
	}
	return s.removeArtifacts(submitterID, jobID)
}

// removeArtifacts deletes the job's on-disk namespace. The jobID segment
// keeps the removal scoped even when submitters share a stem.
func (s *Scheduler) removeArtifacts(submitterID, jobID string) error {
	if submitterID == "" || jobID == "" {
		return nil
	}
	dir := filepath.Join(s.cfg.Paths.OutputDir, submitterID, jobID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove job artifacts: %w", err)
	}
	return nil
}

// History lists the submitter's archived jobs, newest first.
func (s *Scheduler) History(ctx context.Context, submitterID string, limit int) ([]history.Record, error) {
	if s.archive == nil {
		return nil, nil
	}
	return s.archive.List(ctx, submitterID, limit)
}

func (s *Scheduler) lookupLocked(submitterID, jobID string) (*jobs.Job, error) {
	job := s.registry.Get(jobID)
	if job == nil {
		return nil, jobs.ErrNotFound
	}
	if job.SubmitterID != submitterID {
		return nil, jobs.ErrForbidden
	}
	return job, nil
}

func (s *Scheduler) removeFromQueueLocked(jobID string) {
	for i, id := range s.queue {
		if id == jobID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) archiveLocked(job *jobs.Job) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.archive.Archive(ctx, job); err != nil {
		s.logger.Warn("archive job", logging.Args(
			logging.String(logging.FieldJobID, job.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("check history database under %s", s.cfg.Paths.LogDir)),
		)...)
	}
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
