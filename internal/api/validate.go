package api

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"

	"transvox/internal/config"
	"transvox/internal/jobs"
	"transvox/internal/logging"
	"transvox/internal/mediaprobe"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
	".flv":  {},
	".ts":   {},
	".m4v":  {},
}

// validateStart turns a submission request into a job configuration,
// applying the media and language checks admission requires.
func (s *Server) validateStart(ctx context.Context, req StartRequest) (jobs.Config, error) {
	videoPath, err := config.ExpandPath(strings.TrimSpace(req.VideoPath))
	if err != nil || videoPath == "" {
		return jobs.Config{}, errors.New("videoPath is required")
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return jobs.Config{}, fmt.Errorf("video not found: %s", req.VideoPath)
	}
	if info.IsDir() {
		return jobs.Config{}, fmt.Errorf("video path is a directory: %s", req.VideoPath)
	}

	ext := strings.ToLower(filepath.Ext(videoPath))
	if _, ok := videoExtensions[ext]; !ok {
		return jobs.Config{}, fmt.Errorf("unsupported video format %q", ext)
	}

	if max := s.cfg.Limits.MaxVideoBytes; max > 0 && info.Size() > max {
		return jobs.Config{}, fmt.Errorf("video exceeds the %d byte limit", max)
	}

	targetLang := strings.TrimSpace(req.TargetLang)
	if targetLang == "" {
		return jobs.Config{}, errors.New("targetLang is required")
	}
	if _, err := language.Parse(targetLang); err != nil {
		return jobs.Config{}, fmt.Errorf("invalid targetLang %q", req.TargetLang)
	}

	sourceLang := strings.TrimSpace(req.SourceLang)
	if sourceLang != "" && sourceLang != "auto" {
		if _, err := language.Parse(sourceLang); err != nil {
			return jobs.Config{}, fmt.Errorf("invalid sourceLang %q", req.SourceLang)
		}
	}

	transcribe := config.NormalizeEngine(req.TranscribeEngine, "")
	if transcribe != "" && !config.KnownTranscribeEngine(transcribe) {
		return jobs.Config{}, fmt.Errorf("unknown transcription engine %q", req.TranscribeEngine)
	}
	tts := config.NormalizeEngine(req.TTSEngine, "")
	if tts != "" && !config.KnownTTSEngine(tts) {
		return jobs.Config{}, fmt.Errorf("unknown tts engine %q", req.TTSEngine)
	}

	if req.SpeedFactor < 0 || req.SpeedFactor > 3 {
		return jobs.Config{}, fmt.Errorf("speedFactor %v out of range", req.SpeedFactor)
	}

	if err := s.checkDuration(ctx, videoPath); err != nil {
		return jobs.Config{}, err
	}

	cfg := jobs.Config{
		VideoPath:        videoPath,
		SourceLang:       sourceLang,
		TargetLang:       targetLang,
		TranscribeEngine: transcribe,
		TTSEngine:        tts,
		Diarization:      true,
		Separation:       true,
		SpeedFactor:      req.SpeedFactor,
	}
	if req.Diarization != nil {
		cfg.Diarization = *req.Diarization
	}
	if req.Separation != nil {
		cfg.Separation = *req.Separation
	}
	return cfg, nil
}

// checkDuration enforces the minutes limit when ffprobe is available. A
// probe failure only logs; duration is a soft gate.
func (s *Server) checkDuration(ctx context.Context, videoPath string) error {
	maxMinutes := s.cfg.Limits.MaxVideoMinutes
	if maxMinutes <= 0 || !mediaprobe.Available() {
		return nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	info, err := mediaprobe.Inspect(probeCtx, videoPath)
	if err != nil {
		s.logger.Warn("media probe failed", logging.Args(
			logging.String("video", videoPath),
			logging.Error(err),
		)...)
		return nil
	}
	if info.DurationSeconds > float64(maxMinutes)*60 {
		return fmt.Errorf("video exceeds the %d minute limit", maxMinutes)
	}
	return nil
}
