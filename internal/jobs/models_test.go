package jobs

import (
	"errors"
	"testing"
)

func newRunningJob(t *testing.T) *Job {
	t.Helper()
	job := NewJob("j1", "u1", Config{Stem: "movie"})
	if err := job.MarkRunning(); err != nil {
		t.Fatalf("mark running: %v", err)
	}
	return job
}

func TestProgressMonotonicity(t *testing.T) {
	job := newRunningJob(t)

	if !job.UpdateProgress("Transcribing", 20) {
		t.Fatal("expected first update to apply")
	}
	if !job.UpdateProgress("Translating", 45) {
		t.Fatal("expected forward update to apply")
	}
	if job.UpdateProgress("Transcribing", 20) {
		t.Fatal("expected regression to be dropped")
	}
	if job.Percent != 45 || job.StageLabel != "Translating" {
		t.Fatalf("job progress = %d %q", job.Percent, job.StageLabel)
	}
}

func TestProgressIgnoredWhenNotRunning(t *testing.T) {
	job := NewJob("j1", "u1", Config{})
	if job.UpdateProgress("stage", 10) {
		t.Fatal("queued job must not accept progress")
	}
	if job.DisplayPercent() != 0 {
		t.Fatalf("display percent = %d", job.DisplayPercent())
	}
}

func TestTerminalExclusivity(t *testing.T) {
	job := newRunningJob(t)
	if err := job.Succeed(ResultPaths{OutputDir: "/out"}); err != nil {
		t.Fatalf("succeed: %v", err)
	}
	if err := job.Fail(ErrKindInternal, "late failure", ""); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := job.Cancel(); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if job.Result == nil || job.Error != nil {
		t.Fatal("result and error must be mutually exclusive")
	}
	if job.Percent != 100 {
		t.Fatalf("succeeded job percent = %d", job.Percent)
	}
}

func TestFailRecordsErrorOnly(t *testing.T) {
	job := newRunningJob(t)
	if err := job.Fail(ErrKindNonZeroExit, "pipeline exited with code 2", "tail"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if job.Error == nil || job.Error.Kind != ErrKindNonZeroExit {
		t.Fatalf("error = %+v", job.Error)
	}
	if job.Result != nil {
		t.Fatal("failed job must not carry a result")
	}
	if job.DisplayPercent() != 0 {
		t.Fatalf("failed job display percent = %d", job.DisplayPercent())
	}
}

func TestMarkRunningRequiresQueued(t *testing.T) {
	job := newRunningJob(t)
	if err := job.MarkRunning(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRequestCancelIsSticky(t *testing.T) {
	job := NewJob("j1", "u1", Config{})
	job.RequestCancel()
	job.RequestCancel()
	if !job.CancelRequested {
		t.Fatal("cancel flag not set")
	}
}

func TestCloneIsDeep(t *testing.T) {
	job := newRunningJob(t)
	_ = job.Succeed(ResultPaths{OutputDir: "/out", FinalVideo: "/out/merge/movie_dubbed.mp4"})

	cp := job.Clone()
	cp.Result.FinalVideo = "elsewhere"
	if job.Result.FinalVideo != "/out/merge/movie_dubbed.mp4" {
		t.Fatal("clone shares result pointer")
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Running "); !ok || status != StatusRunning {
		t.Fatalf("ParseStatus = %q %v", status, ok)
	}
	if _, ok := ParseStatus("paused"); ok {
		t.Fatal("unknown status accepted")
	}
}
