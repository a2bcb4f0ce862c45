// Package mediaprobe inspects submission videos with ffprobe. Probing is
// best-effort: when ffprobe is absent the daemon accepts media without a
// duration check.
package mediaprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Info is the subset of container metadata admission control cares about.
type Info struct {
	DurationSeconds float64
	FormatName      string
	HasVideoStream  bool
	HasAudioStream  bool
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// Available reports whether ffprobe can be invoked.
func Available() bool {
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// Inspect runs ffprobe against path and extracts admission metadata.
func Inspect(ctx context.Context, path string) (Info, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Info{}, errors.New("inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var parsed probeOutput
	if err := json.Unmarshal(output, &parsed); err != nil {
		return Info{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	info := Info{FormatName: parsed.Format.FormatName}
	if duration, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil && duration > 0 {
		info.DurationSeconds = duration
	}
	for _, stream := range parsed.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "video":
			info.HasVideoStream = true
		case "audio":
			info.HasAudioStream = true
		}
	}
	return info, nil
}
