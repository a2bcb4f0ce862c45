package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	InputDir  string `toml:"input_dir" env:"INPUT_DIR"`
	OutputDir string `toml:"output_dir" env:"OUTPUT_DIR"`
	LogDir    string `toml:"log_dir" env:"LOG_DIR"`
	APIBind   string `toml:"api_bind" env:"API_BIND"`
	APIToken  string `toml:"api_token" env:"API_TOKEN"`
}

// Pipeline contains configuration for the external dubbing pipeline runner.
type Pipeline struct {
	Python           string `toml:"python" env:"PIPELINE_PYTHON"`
	Script           string `toml:"script" env:"PIPELINE_SCRIPT"`
	WorkDir          string `toml:"workdir" env:"PIPELINE_WORKDIR"`
	TranscribeEngine string `toml:"transcribe_engine"`
	TTSEngine        string `toml:"tts_engine"`
}

// Limits bounds the media accepted at submission time.
type Limits struct {
	MaxVideoMinutes int   `toml:"max_video_minutes" env:"MAX_VIDEO_MINUTES"`
	MaxVideoBytes   int64 `toml:"max_video_bytes" env:"MAX_VIDEO_BYTES"`
}

// Workflow contains scheduler timing configuration. All values are seconds
// except CancelPollMillis. JobTimeout of 0 means a job may run indefinitely.
type Workflow struct {
	QueuePollInterval int `toml:"queue_poll_interval"`
	CancelPollMillis  int `toml:"cancel_poll_millis"`
	JobTimeout        int `toml:"job_timeout" env:"JOB_TIMEOUT"`
	TerminateGrace    int `toml:"terminate_grace"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" env:"LOG_FORMAT"`
	Level  string `toml:"level" env:"LOG_LEVEL"`
}

// Config encapsulates all configuration values for transvox.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Pipeline Pipeline `toml:"pipeline"`
	Limits   Limits   `toml:"limits"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/transvox/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The second return is
// the resolved config path; the third reports whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	// Match the reference server: a .env alongside the process feeds the
	// environment before anything else is read.
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "TRANSVOX_"}); err != nil {
		return nil, "", false, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("transvox.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.InputDir, c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobOutputDir returns the deterministic artifact namespace for one job.
// Layout follows the reference server: output/<submitter>/<job>/<stem>/.
func (c *Config) JobOutputDir(submitterID, jobID, stem string) string {
	return filepath.Join(c.Paths.OutputDir, submitterID, jobID, stem)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
