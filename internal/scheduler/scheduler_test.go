//go:build unix

package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"transvox/internal/config"
	"transvox/internal/history"
	"transvox/internal/jobs"
	"transvox/internal/logging"
	"transvox/internal/scheduler"
	"transvox/internal/testsupport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	cfg     *config.Config
	sched   *scheduler.Scheduler
	archive *history.Store
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	archive, err := history.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = archive.Close() })

	sched := scheduler.New(cfg, logging.NewNop(), archive)
	sched.Start(context.Background())
	t.Cleanup(sched.Close)
	return &fixture{cfg: cfg, sched: sched, archive: archive}
}

func submit(t *testing.T, f *fixture, submitter string) *jobs.Job {
	t.Helper()
	video := testsupport.WriteVideo(t, f.cfg.Paths.InputDir, "movie.mp4", 64)
	job, err := f.sched.Submit(submitter, jobs.Config{
		VideoPath:  video,
		TargetLang: "zh",
	})
	require.NoError(t, err)
	return job
}

func waitStatus(t *testing.T, f *fixture, submitter, jobID string, want jobs.Status) *jobs.Job {
	t.Helper()
	var last *jobs.Job
	require.Eventually(t, func() bool {
		job, err := f.sched.Status(submitter, jobID)
		if err != nil {
			return false
		}
		last = job
		return job.Status == want
	}, 15*time.Second, 20*time.Millisecond, "job %s never reached %s (last: %+v)", jobID, want, last)
	return last
}

func successScript(t *testing.T) testsupport.ConfigOption {
	t.Helper()
	return testsupport.WithPipelineScript(testsupport.WritePipelineScript(t, testsupport.ScriptSpec{
		ProgressLines: []string{
			"开始全自动视频翻译流水线: movie.mp4",
			"[Step 1] 音视频处理和转录",
			"[Step 2] 翻译字幕",
			"[Step 3] IndexTTS",
			"流水线执行完成",
		},
		WriteArtifacts: true,
	}))
}

func TestSuccessfulJobLifecycle(t *testing.T) {
	f := newFixture(t, successScript(t))

	job := submit(t, f, "alice")
	assert.Equal(t, jobs.StatusQueued, job.Status)
	assert.Equal(t, "movie", job.Config.Stem)
	assert.Equal(t, f.cfg.JobOutputDir("alice", job.ID, "movie"), job.Config.OutputDir)

	final := waitStatus(t, f, "alice", job.ID, jobs.StatusSucceeded)
	assert.Equal(t, 100, final.Percent)
	assert.Equal(t, "done", final.StageLabel)
	require.NotNil(t, final.Result)
	assert.FileExists(t, final.Result.FinalVideo)
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.FinishedAt)

	record, err := f.archive.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, string(jobs.StatusSucceeded), record.Status)
}

func TestSubmitDefaultsEnginesFromConfig(t *testing.T) {
	f := newFixture(t, successScript(t))
	job := submit(t, f, "alice")
	assert.Equal(t, f.cfg.Pipeline.TranscribeEngine, job.Config.TranscribeEngine)
	assert.Equal(t, f.cfg.Pipeline.TTSEngine, job.Config.TTSEngine)
}

func TestAdmissionOneActiveJobPerSubmitter(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{SleepSeconds: 10})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	job := submit(t, f, "alice")

	video := testsupport.WriteVideo(t, f.cfg.Paths.InputDir, "other.mp4", 64)
	_, err := f.sched.Submit("alice", jobs.Config{VideoPath: video, TargetLang: "zh"})
	var admission *jobs.AdmissionError
	require.ErrorAs(t, err, &admission)
	assert.Equal(t, job.ID, admission.ExistingJobID)

	// A different submitter is admitted regardless.
	_, err = f.sched.Submit("bob", jobs.Config{VideoPath: video, TargetLang: "zh"})
	require.NoError(t, err)
}

func TestAdmissionReopensAfterTerminal(t *testing.T) {
	f := newFixture(t, successScript(t))

	job := submit(t, f, "alice")
	waitStatus(t, f, "alice", job.ID, jobs.StatusSucceeded)

	video := testsupport.WriteVideo(t, f.cfg.Paths.InputDir, "again.mp4", 64)
	_, err := f.sched.Submit("alice", jobs.Config{VideoPath: video, TargetLang: "zh"})
	require.NoError(t, err)
}

func TestSingleFlightFIFO(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{
		SleepSeconds:   1,
		WriteArtifacts: true,
	})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	first := submit(t, f, "alice")
	video := testsupport.WriteVideo(t, f.cfg.Paths.InputDir, "second.mp4", 64)
	second, err := f.sched.Submit("bob", jobs.Config{VideoPath: video, TargetLang: "zh"})
	require.NoError(t, err)

	waitStatus(t, f, "alice", first.ID, jobs.StatusRunning)
	snapshot, err := f.sched.Status("bob", second.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusQueued, snapshot.Status, "second job must wait for the first")

	firstDone := waitStatus(t, f, "alice", first.ID, jobs.StatusSucceeded)
	secondDone := waitStatus(t, f, "bob", second.ID, jobs.StatusSucceeded)
	require.NotNil(t, secondDone.StartedAt)
	require.NotNil(t, firstDone.FinishedAt)
	assert.False(t, secondDone.StartedAt.Before(*firstDone.StartedAt), "start order must follow submission order")
}

func TestCancelQueuedJob(t *testing.T) {
	// A long-running job occupies the worker so the second stays queued.
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{SleepSeconds: 10})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	blocker := submit(t, f, "alice")
	waitStatus(t, f, "alice", blocker.ID, jobs.StatusRunning)

	video := testsupport.WriteVideo(t, f.cfg.Paths.InputDir, "queued.mp4", 64)
	queued, err := f.sched.Submit("bob", jobs.Config{VideoPath: video, TargetLang: "zh"})
	require.NoError(t, err)

	cancelled, err := f.sched.Cancel("bob", queued.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusCancelled, cancelled.Status)
	assert.NoDirExists(t, queued.Config.OutputDir, "cancelling a queued job must leave no side effects")
}

func TestCancelRunningJobTerminatesProcess(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{
		ProgressLines: []string{"[Step 1] 音视频处理和转录"},
		SleepSeconds:  30,
	})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	job := submit(t, f, "alice")
	waitStatus(t, f, "alice", job.ID, jobs.StatusRunning)

	snapshot, err := f.sched.Cancel("alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusRunning, snapshot.Status, "running cancel only sets the flag")
	assert.True(t, snapshot.CancelRequested)

	start := time.Now()
	final := waitStatus(t, f, "alice", job.ID, jobs.StatusCancelled)
	assert.Less(t, time.Since(start), 10*time.Second, "cancellation must not wait for the sleep to finish")
	assert.Nil(t, final.Result)
}

func TestCancelTerminalJobIsNoOp(t *testing.T) {
	f := newFixture(t, successScript(t))
	job := submit(t, f, "alice")
	waitStatus(t, f, "alice", job.ID, jobs.StatusSucceeded)

	snapshot, err := f.sched.Cancel("alice", job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusSucceeded, snapshot.Status)
	require.NotNil(t, snapshot.Result)
}

func TestNonZeroExitFailsWithTail(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{
		ProgressLines: []string{"[Step 1] 音视频处理和转录", "model load error"},
		ExitCode:      2,
	})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	job := submit(t, f, "alice")
	final := waitStatus(t, f, "alice", job.ID, jobs.StatusFailed)
	require.NotNil(t, final.Error)
	assert.Equal(t, jobs.ErrKindNonZeroExit, final.Error.Kind)
	assert.Contains(t, final.Error.Message, "status 2")
	assert.Contains(t, final.Error.Details, "model load error")
}

func TestZeroExitWithoutArtifactsFails(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{
		ProgressLines: []string{"流水线执行完成"},
	})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	job := submit(t, f, "alice")
	final := waitStatus(t, f, "alice", job.ID, jobs.StatusFailed)
	require.NotNil(t, final.Error)
	assert.Equal(t, jobs.ErrKindIncompleteResult, final.Error.Kind)
}

func TestLaunchArgumentsAcceptedByPipeline(t *testing.T) {
	// The fake pipeline mirrors the real CLI and exits 2 on any option it
	// does not define, so reaching success proves the launch arguments
	// stay within the script's accepted set and that artifacts are
	// relocated out of the script's own output/<stem> staging area.
	f := newFixture(t, successScript(t))

	video := testsupport.WriteVideo(t, f.cfg.Paths.InputDir, "movie.mp4", 64)
	job, err := f.sched.Submit("alice", jobs.Config{
		VideoPath:   video,
		SourceLang:  "ja",
		TargetLang:  "en",
		SpeedFactor: 1.1,
	})
	require.NoError(t, err)

	final := waitStatus(t, f, "alice", job.ID, jobs.StatusSucceeded)
	require.NotNil(t, final.Result)
	assert.FileExists(t, final.Result.FinalVideo)
	assert.Equal(t, final.Config.OutputDir, final.Result.OutputDir)
}

func TestCollectorStatErrorFailsAsInternal(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{CorruptArtifacts: true})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	job := submit(t, f, "alice")
	final := waitStatus(t, f, "alice", job.ID, jobs.StatusFailed)
	require.NotNil(t, final.Error)
	assert.Equal(t, jobs.ErrKindInternal, final.Error.Kind)
}

func TestSpawnFailure(t *testing.T) {
	f := newFixture(t, testsupport.WithInterpreter("/nonexistent/transvox-python"))

	job := submit(t, f, "alice")
	final := waitStatus(t, f, "alice", job.ID, jobs.StatusFailed)
	require.NotNil(t, final.Error)
	assert.Equal(t, jobs.ErrKindSpawnFailure, final.Error.Kind)
}

func TestJobTimeout(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{SleepSeconds: 30})
	f := newFixture(t, testsupport.WithPipelineScript(script), testsupport.WithJobTimeout(1))

	job := submit(t, f, "alice")
	final := waitStatus(t, f, "alice", job.ID, jobs.StatusFailed)
	require.NotNil(t, final.Error)
	assert.Equal(t, jobs.ErrKindTimeout, final.Error.Kind)
}

func TestProgressNeverRegresses(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{
		ProgressLines: []string{
			"[Step 2] 翻译字幕",
			"[Step 1] 音视频处理和转录",
			"[Step 3] IndexTTS",
		},
		SleepSeconds:   0.2,
		WriteArtifacts: true,
	})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	job := submit(t, f, "alice")
	seen := 0
	require.Eventually(t, func() bool {
		snapshot, err := f.sched.Status("alice", job.ID)
		if err != nil {
			return false
		}
		if snapshot.Status == jobs.StatusRunning {
			require.GreaterOrEqual(t, snapshot.Percent, seen)
			seen = snapshot.Percent
		}
		return snapshot.Status == jobs.StatusSucceeded
	}, 15*time.Second, 10*time.Millisecond)
}

func TestStatusErrors(t *testing.T) {
	f := newFixture(t, successScript(t))
	job := submit(t, f, "alice")

	_, err := f.sched.Status("alice", "no-such-job")
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	_, err = f.sched.Status("mallory", job.ID)
	assert.ErrorIs(t, err, jobs.ErrForbidden)
}

func TestPurge(t *testing.T) {
	f := newFixture(t, successScript(t))
	ctx := context.Background()

	job := submit(t, f, "alice")
	done := waitStatus(t, f, "alice", job.ID, jobs.StatusSucceeded)
	require.DirExists(t, done.Config.OutputDir)

	require.NoError(t, f.sched.Purge(ctx, "alice", job.ID))

	_, err := f.sched.Status("alice", job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotFound)

	record, err := f.archive.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, record, "purge must remove the archived record")
	assert.NoDirExists(t, done.Config.OutputDir, "purge must remove the artifact directory")
}

func TestPurgeActiveJobRefused(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{SleepSeconds: 10})
	f := newFixture(t, testsupport.WithPipelineScript(script))

	job := submit(t, f, "alice")
	waitStatus(t, f, "alice", job.ID, jobs.StatusRunning)

	err := f.sched.Purge(context.Background(), "alice", job.ID)
	assert.ErrorIs(t, err, jobs.ErrNotTerminal)
}

func TestHistoryListsTerminalJobs(t *testing.T) {
	f := newFixture(t, successScript(t))
	ctx := context.Background()

	job := submit(t, f, "alice")
	waitStatus(t, f, "alice", job.ID, jobs.StatusSucceeded)

	records, err := f.sched.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, job.ID, records[0].ID)

	records, err = f.sched.History(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCloseFailsRunningAndQueuedJobs(t *testing.T) {
	script := testsupport.WritePipelineScript(t, testsupport.ScriptSpec{SleepSeconds: 30})
	cfg := testsupport.NewConfig(t, testsupport.WithPipelineScript(script))
	archive, err := history.Open(cfg)
	require.NoError(t, err)
	defer archive.Close()

	sched := scheduler.New(cfg, logging.NewNop(), archive)
	sched.Start(context.Background())

	video := testsupport.WriteVideo(t, cfg.Paths.InputDir, "run.mp4", 64)
	running, err := sched.Submit("alice", jobs.Config{VideoPath: video, TargetLang: "zh"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		job, err := sched.Status("alice", running.ID)
		return err == nil && job.Status == jobs.StatusRunning
	}, 15*time.Second, 20*time.Millisecond)

	queuedVideo := testsupport.WriteVideo(t, cfg.Paths.InputDir, "wait.mp4", 64)
	queued, err := sched.Submit("bob", jobs.Config{VideoPath: queuedVideo, TargetLang: "zh"})
	require.NoError(t, err)

	start := time.Now()
	sched.Close()
	assert.Less(t, time.Since(start), 15*time.Second)

	ranJob, err := sched.Status("alice", running.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, ranJob.Status)
	require.NotNil(t, ranJob.Error)
	assert.Equal(t, jobs.DaemonStopReason, ranJob.Error.Message)

	queuedJob, err := sched.Status("bob", queued.ID)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, queuedJob.Status)

	_, err = sched.Submit("carol", jobs.Config{VideoPath: video, TargetLang: "zh"})
	assert.True(t, errors.Is(err, scheduler.ErrStopped))
}
