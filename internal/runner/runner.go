// Package runner builds and launches the dubbing pipeline command for one
// job. The pipeline itself is an external Python program; this package owns
// the argument and environment contract and nothing else.
package runner

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"transvox/internal/config"
	"transvox/internal/jobs"
	"transvox/internal/proctree"
)

// Launcher abstracts process creation for testability.
type Launcher interface {
	Launch(spec proctree.Spec) (*proctree.Handle, error)
}

// ProcessLauncher spawns real OS processes.
type ProcessLauncher struct{}

func (ProcessLauncher) Launch(spec proctree.Spec) (*proctree.Handle, error) {
	return proctree.Spawn(spec)
}

// Runner turns a job configuration into a pipeline process spec.
type Runner struct {
	cfg config.Pipeline
}

func New(cfg config.Pipeline) *Runner {
	return &Runner{cfg: cfg}
}

// Spec builds the launch spec for one job.
func (r *Runner) Spec(job jobs.Config) (proctree.Spec, error) {
	if job.VideoPath == "" {
		return proctree.Spec{}, errors.New("video path required")
	}

	// The script chooses its own output location (output/<stem> under its
	// working directory) and offers no flag to redirect it; artifacts are
	// relocated into the job namespace after the run.
	args := []string{
		r.cfg.Script,
		job.VideoPath,
		"--engine", job.TranscribeEngine,
		"--target_lang", job.TargetLang,
		"--tts_engine", job.TTSEngine,
		"--translation_mode", "whole",
	}
	if job.TTSEngine == "gptsovits" {
		args = append(args, "--tts_mode", "local")
	}
	// The script only understands automatic source detection; any concrete
	// source language stays off the command line.
	if job.SourceLang == "" || job.SourceLang == "auto" {
		args = append(args, "--language", "auto")
	}
	if !job.Diarization {
		args = append(args, "--no-diarization")
	}
	if !job.Separation {
		args = append(args, "--no-separation")
	}

	env := []string{"PYTHONIOENCODING=utf-8"}
	if job.TTSEngine == "gptsovits" && job.SpeedFactor > 0 {
		env = append(env, "GSV_SPEED_FACTOR="+strconv.FormatFloat(job.SpeedFactor, 'f', -1, 64))
	}

	return proctree.Spec{
		Binary: r.cfg.Python,
		Args:   args,
		Dir:    r.cfg.WorkDir,
		Env:    env,
	}, nil
}

// StagingDir returns where the pipeline writes a job's artifacts:
// output/<stem> under the pipeline working directory.
func (r *Runner) StagingDir(stem string) string {
	return filepath.Join(r.cfg.WorkDir, "output", stem)
}

// Start builds the spec for job and launches it.
func (r *Runner) Start(job jobs.Config, launcher Launcher) (*proctree.Handle, error) {
	spec, err := r.Spec(job)
	if err != nil {
		return nil, err
	}
	handle, err := launcher.Launch(spec)
	if err != nil {
		return nil, fmt.Errorf("launch pipeline: %w", err)
	}
	return handle, nil
}
