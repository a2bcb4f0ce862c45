package runner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transvox/internal/config"
	"transvox/internal/jobs"
	"transvox/internal/runner"
)

func testPipeline() config.Pipeline {
	return config.Pipeline{
		Python:  "python3",
		Script:  "full_auto_pipeline.py",
		WorkDir: "/opt/transvox",
	}
}

func TestSpecBuildsPipelineArguments(t *testing.T) {
	r := runner.New(testPipeline())
	spec, err := r.Spec(jobs.Config{
		VideoPath:        "/videos/movie.mp4",
		SourceLang:       "auto",
		TargetLang:       "zh",
		TranscribeEngine: "whisperx",
		TTSEngine:        "indextts",
		Diarization:      true,
		Separation:       true,
		OutputDir:        "/out/alice/job1/movie",
	})
	require.NoError(t, err)

	assert.Equal(t, "python3", spec.Binary)
	assert.Equal(t, "/opt/transvox", spec.Dir)
	assert.Equal(t, []string{
		"full_auto_pipeline.py",
		"/videos/movie.mp4",
		"--engine", "whisperx",
		"--target_lang", "zh",
		"--tts_engine", "indextts",
		"--translation_mode", "whole",
		"--language", "auto",
	}, spec.Args)
	assert.Contains(t, spec.Env, "PYTHONIOENCODING=utf-8")
	assert.NotContains(t, spec.Env, "GSV_SPEED_FACTOR=1.2")
}

func TestSpecNeverPassesOutputFlag(t *testing.T) {
	r := runner.New(testPipeline())
	spec, err := r.Spec(jobs.Config{
		VideoPath:        "/videos/movie.mp4",
		TargetLang:       "zh",
		TranscribeEngine: "whisperx",
		TTSEngine:        "indextts",
		Diarization:      true,
		Separation:       true,
		OutputDir:        "/out/alice/job1/movie",
	})
	require.NoError(t, err)

	// The script rejects unknown options and writes to output/<stem> on
	// its own; the namespace directory is filled by relocation afterwards.
	assert.NotContains(t, spec.Args, "--output_dir")
	assert.NotContains(t, spec.Args, "/out/alice/job1/movie")
}

func TestSpecExplicitSourceLanguageStaysOff(t *testing.T) {
	r := runner.New(testPipeline())
	spec, err := r.Spec(jobs.Config{
		VideoPath:        "/videos/movie.mp4",
		SourceLang:       "ja",
		TargetLang:       "en",
		TranscribeEngine: "whisperx",
		TTSEngine:        "indextts",
		Diarization:      true,
		Separation:       true,
	})
	require.NoError(t, err)

	assert.NotContains(t, spec.Args, "--language")
	assert.NotContains(t, spec.Args, "ja")
}

func TestSpecGPTSoVITSFlags(t *testing.T) {
	r := runner.New(testPipeline())
	spec, err := r.Spec(jobs.Config{
		VideoPath:        "/videos/movie.mp4",
		SourceLang:       "auto",
		TargetLang:       "en",
		TranscribeEngine: "whisperx",
		TTSEngine:        "gptsovits",
		Diarization:      false,
		Separation:       false,
		SpeedFactor:      1.2,
	})
	require.NoError(t, err)

	assert.Contains(t, spec.Args, "--tts_mode")
	assert.Contains(t, spec.Args, "local")
	assert.Contains(t, spec.Args, "--language")
	assert.Contains(t, spec.Args, "--no-diarization")
	assert.Contains(t, spec.Args, "--no-separation")
	assert.Contains(t, spec.Env, "GSV_SPEED_FACTOR=1.2")
}

func TestSpecSpeedFactorOnlyForGPTSoVITS(t *testing.T) {
	r := runner.New(testPipeline())
	spec, err := r.Spec(jobs.Config{
		VideoPath:        "/videos/movie.mp4",
		TargetLang:       "en",
		TranscribeEngine: "whisperx",
		TTSEngine:        "indextts",
		SpeedFactor:      1.2,
	})
	require.NoError(t, err)

	assert.NotContains(t, spec.Args, "--tts_mode")
	assert.NotContains(t, spec.Env, "GSV_SPEED_FACTOR=1.2")
}

func TestStagingDir(t *testing.T) {
	r := runner.New(testPipeline())
	assert.Equal(t, "/opt/transvox/output/movie", r.StagingDir("movie"))
}

func TestSpecRequiresVideoPath(t *testing.T) {
	r := runner.New(testPipeline())
	_, err := r.Spec(jobs.Config{TargetLang: "zh"})
	require.Error(t, err)
}
