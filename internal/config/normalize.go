package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizePipeline(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.InputDir, err = expandPath(c.Paths.InputDir); err != nil {
		return fmt.Errorf("paths.input_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizePipeline() error {
	c.Pipeline.Python = strings.TrimSpace(c.Pipeline.Python)
	if c.Pipeline.Python == "" {
		c.Pipeline.Python = defaultPython
	}
	c.Pipeline.Script = strings.TrimSpace(c.Pipeline.Script)
	if c.Pipeline.Script == "" {
		c.Pipeline.Script = defaultScript
	}
	if strings.TrimSpace(c.Pipeline.WorkDir) != "" {
		expanded, err := expandPath(c.Pipeline.WorkDir)
		if err != nil {
			return fmt.Errorf("pipeline.workdir: %w", err)
		}
		c.Pipeline.WorkDir = expanded
	}
	c.Pipeline.TranscribeEngine = normalizeEngine(c.Pipeline.TranscribeEngine, defaultTranscribeEngine)
	c.Pipeline.TTSEngine = normalizeEngine(c.Pipeline.TTSEngine, defaultTTSEngine)
	return nil
}

// normalizeEngine lowercases an engine name and strips separators so that
// user spellings like "GPT-SoVITS" and "gpt_sovits" converge.
func normalizeEngine(value, fallback string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, "-", "")
	value = strings.ReplaceAll(value, "_", "")
	if value == "" {
		return fallback
	}
	return value
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.CancelPollMillis <= 0 {
		c.Workflow.CancelPollMillis = defaultCancelPollMillis
	}
	if c.Workflow.JobTimeout < 0 {
		c.Workflow.JobTimeout = 0
	}
	if c.Workflow.TerminateGrace <= 0 {
		c.Workflow.TerminateGrace = defaultTerminateGrace
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
