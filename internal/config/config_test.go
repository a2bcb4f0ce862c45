package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize default config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate default config: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if exists {
		t.Fatalf("expected exists=false for %s", path)
	}
	if cfg.Pipeline.Python != "python3" {
		t.Fatalf("unexpected default python: %q", cfg.Pipeline.Python)
	}
	if cfg.Workflow.JobTimeout != 0 {
		t.Fatalf("expected unbounded job timeout by default, got %d", cfg.Workflow.JobTimeout)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`output_dir = "` + filepath.Join(dir, "out") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[pipeline]",
		`tts_engine = "GPT-SoVITS"`,
		"[workflow]",
		"job_timeout = 3600",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Pipeline.TTSEngine != "gptsovits" {
		t.Fatalf("engine not normalized: %q", cfg.Pipeline.TTSEngine)
	}
	if cfg.Workflow.JobTimeout != 3600 {
		t.Fatalf("job_timeout = %d", cfg.Workflow.JobTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRANSVOX_LOG_LEVEL", "debug")
	t.Setenv("TRANSVOX_MAX_VIDEO_MINUTES", "45")

	cfg, _, _, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("env override ignored: %q", cfg.Logging.Level)
	}
	if cfg.Limits.MaxVideoMinutes != 45 {
		t.Fatalf("limit override ignored: %d", cfg.Limits.MaxVideoMinutes)
	}
}

func TestValidateRejectsUnknownEngine(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.TTSEngine = "espeak"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unknown tts engine")
	}
}

func TestNormalizeEngine(t *testing.T) {
	cases := map[string]string{
		"GPT-SoVITS": "gptsovits",
		"gpt_sovits": "gptsovits",
		"IndexTTS":   "indextts",
		"":           "indextts",
	}
	for input, want := range cases {
		if got := normalizeEngine(input, "indextts"); got != want {
			t.Errorf("normalizeEngine(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestJobOutputDir(t *testing.T) {
	cfg := Default()
	cfg.Paths.OutputDir = "/srv/out"
	got := cfg.JobOutputDir("u1", "j1", "movie")
	if got != filepath.Join("/srv/out", "u1", "j1", "movie") {
		t.Fatalf("JobOutputDir = %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("create sample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[pipeline]") {
		t.Fatal("sample config missing pipeline section")
	}
}
