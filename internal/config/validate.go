package config

import (
	"errors"
	"fmt"
)

var knownTranscribeEngines = map[string]struct{}{
	"whisperx": {},
	"whisper":  {},
}

var knownTTSEngines = map[string]struct{}{
	"indextts":  {},
	"gptsovits": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	if c.Paths.APIBind == "" {
		return errors.New("paths.api_bind must be set")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Script == "" {
		return errors.New("pipeline.script must be set")
	}
	if _, ok := knownTranscribeEngines[c.Pipeline.TranscribeEngine]; !ok {
		return fmt.Errorf("pipeline.transcribe_engine: unknown engine %q", c.Pipeline.TranscribeEngine)
	}
	if _, ok := knownTTSEngines[c.Pipeline.TTSEngine]; !ok {
		return fmt.Errorf("pipeline.tts_engine: unknown engine %q", c.Pipeline.TTSEngine)
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxVideoMinutes < 0 {
		return errors.New("limits.max_video_minutes must not be negative")
	}
	if c.Limits.MaxVideoBytes < 0 {
		return errors.New("limits.max_video_bytes must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

// KnownTranscribeEngine reports whether an engine name (already normalized)
// is supported by the pipeline.
func KnownTranscribeEngine(name string) bool {
	_, ok := knownTranscribeEngines[name]
	return ok
}

// KnownTTSEngine reports whether a TTS engine name is supported.
func KnownTTSEngine(name string) bool {
	_, ok := knownTTSEngines[name]
	return ok
}

// NormalizeEngine exposes engine-name normalization for submission handling.
func NormalizeEngine(value, fallback string) string {
	return normalizeEngine(value, fallback)
}
