package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"transvox/internal/api"
	"transvox/internal/config"
	"transvox/internal/deps"
	"transvox/internal/history"
	"transvox/internal/logging"
	"transvox/internal/scheduler"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	archive *history.Store
	sched   *scheduler.Scheduler
	server  *api.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, archive *history.Store, sched *scheduler.Scheduler, server *api.Server, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || archive == nil || sched == nil || server == nil {
		return nil, errors.New("daemon requires config, archive, scheduler, and api server")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "transvoxd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.WithComponent(logger, "daemon"),
		archive:  archive,
		sched:    sched,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string { return d.lockPath }

// APIAddr returns the bound API address after Start.
func (d *Daemon) APIAddr() string { return d.server.Addr() }

// Start acquires the instance lock and launches the scheduler and the API
// server. It returns once both are up.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another transvox daemon instance is already running")
	}

	for _, status := range deps.Check(d.cfg) {
		if status.Available {
			continue
		}
		if status.Optional {
			d.logger.Info("optional dependency unavailable", logging.Args(
				logging.String("dependency", status.Name),
				logging.String("detail", status.Detail),
			)...)
			continue
		}
		d.logger.Warn("required dependency unavailable, jobs will fail to start", logging.Args(
			logging.String("dependency", status.Name),
			logging.String("detail", status.Detail),
		)...)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.group, runCtx = errgroup.WithContext(runCtx)

	d.sched.Start(runCtx)
	if err := d.server.Start(runCtx); err != nil {
		d.sched.Close()
		_ = d.lock.Unlock()
		cancel()
		return err
	}

	d.group.Go(func() error {
		<-runCtx.Done()
		return nil
	})

	d.running.Store(true)
	d.logger.Info("daemon started", logging.Args(
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()),
	)...)
	return nil
}

// Wait blocks until the daemon's run context ends.
func (d *Daemon) Wait() error {
	if d.group == nil {
		return nil
	}
	return d.group.Wait()
}

// Stop tears everything down: the API stops accepting requests, the
// scheduler kills any live process tree and fails the interrupted job, and
// the lock is released.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.sched.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Args(logging.Error(err))...)
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and closes the archive.
func (d *Daemon) Close() error {
	d.Stop()
	return d.archive.Close()
}
