// Package results locates pipeline output artifacts after a run completes.
// The pipeline writes into a per-job directory; only the dubbed video is
// mandatory, subtitle artifacts are attached when present.
package results

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"transvox/internal/jobs"
)

// ErrIncompleteResult reports a zero-exit run that did not produce the
// dubbed video. Such runs are failures regardless of exit status.
var ErrIncompleteResult = errors.New("pipeline exited cleanly without producing the dubbed video")

// Collect probes outputDir for the artifacts of stem. It returns
// ErrIncompleteResult when the mandatory final video is missing.
func Collect(outputDir, stem string) (jobs.ResultPaths, error) {
	if outputDir == "" || stem == "" {
		return jobs.ResultPaths{}, errors.New("output directory and stem required")
	}

	result := jobs.ResultPaths{OutputDir: outputDir}

	final := filepath.Join(outputDir, "merge", stem+"_dubbed.mp4")
	ok, err := fileExists(final)
	if err != nil {
		return jobs.ResultPaths{}, err
	}
	if !ok {
		return jobs.ResultPaths{}, fmt.Errorf("%w: %s", ErrIncompleteResult, final)
	}
	result.FinalVideo = final

	// Subtitle artifacts are best-effort: a run may skip optimization or
	// translation stages and still be complete.
	result.InitialSRT = optional(filepath.Join(outputDir, stem+".srt"))
	result.MergedSRT = optional(filepath.Join(outputDir, stem+"_merged_optimized.srt"))
	result.TranslatedSRT = optional(filepath.Join(outputDir, stem+".translated.srt"))

	return result, nil
}

func optional(path string) string {
	if ok, err := fileExists(path); err == nil && ok {
		return path
	}
	return ""
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return !info.IsDir(), nil
}
