package testsupport

import (
	"path/filepath"
	"testing"

	"transvox/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.InputDir = filepath.Join(base, "input")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.CancelPollMillis = 20
	cfg.Workflow.TerminateGrace = 1

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAPIToken sets the API bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Paths.APIToken = token
	}
}

// WithJobTimeout sets the per-job execution timeout in seconds.
func WithJobTimeout(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.JobTimeout = seconds
	}
}

// WithPipelineScript points the pipeline runner at a shell script, typically
// one produced by WritePipelineScript. The script's directory becomes the
// pipeline working directory, so its output/<stem> staging area stays inside
// the test's temp space.
func WithPipelineScript(script string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.Python = "/bin/sh"
		cfg.Pipeline.Script = script
		cfg.Pipeline.WorkDir = filepath.Dir(script)
	}
}

// WithInterpreter overrides the interpreter used to launch the pipeline.
func WithInterpreter(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.Python = path
	}
}

// WithLimits overrides the submission media limits.
func WithLimits(maxMinutes int, maxBytes int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Limits.MaxVideoMinutes = maxMinutes
		cfg.Limits.MaxVideoBytes = maxBytes
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.InputDir)
}
