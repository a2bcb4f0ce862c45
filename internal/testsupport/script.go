package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ScriptSpec describes the behavior of a fake pipeline script. The generated
// script mimics the real pipeline's command line: the video path is $1, any
// option outside the known set is rejected with exit 2, and artifacts go to
// output/<stem> under the script's working directory.
type ScriptSpec struct {
	// ProgressLines are echoed to stdout in order before anything else.
	ProgressLines []string
	// SleepSeconds pauses after emitting progress, keeping the process alive
	// for cancellation tests. Fractional values are allowed.
	SleepSeconds float64
	// ExitCode is the script's exit status.
	ExitCode int
	// WriteArtifacts creates the dubbed video and subtitle files in the
	// staging directory before exiting.
	WriteArtifacts bool
	// CorruptArtifacts writes merge as a regular file instead of a
	// directory, so artifact probing hits a stat error rather than ENOENT.
	CorruptArtifacts bool
}

// WritePipelineScript materializes spec as a shell script and returns its
// path, ready for WithPipelineScript.
func WritePipelineScript(t testing.TB, spec ScriptSpec) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString(`video="$1"; shift` + "\n")
	b.WriteString(`stem=$(basename "$video"); stem="${stem%.*}"` + "\n")
	b.WriteString(`for a in "$@"; do` + "\n")
	b.WriteString(`  case "$a" in` + "\n")
	b.WriteString(`    --engine|--target_lang|--tts_engine|--translation_mode|--tts_mode|--language|--no-diarization|--no-separation) ;;` + "\n")
	b.WriteString(`    --*) echo "error: unrecognized arguments: $a" >&2; exit 2 ;;` + "\n")
	b.WriteString(`  esac` + "\n")
	b.WriteString(`done` + "\n")
	b.WriteString(`out="output/$stem"` + "\n")

	for _, line := range spec.ProgressLines {
		fmt.Fprintf(&b, "echo %s\n", shellQuote(line))
	}
	if spec.SleepSeconds > 0 {
		fmt.Fprintf(&b, "sleep %g\n", spec.SleepSeconds)
	}
	if spec.WriteArtifacts {
		b.WriteString(`mkdir -p "$out/merge"` + "\n")
		b.WriteString(`: > "$out/$stem.srt"` + "\n")
		b.WriteString(`: > "$out/${stem}_merged_optimized.srt"` + "\n")
		b.WriteString(`: > "$out/$stem.translated.srt"` + "\n")
		b.WriteString(`: > "$out/merge/${stem}_dubbed.mp4"` + "\n")
	}
	if spec.CorruptArtifacts {
		b.WriteString(`mkdir -p "$out"` + "\n")
		b.WriteString(`: > "$out/merge"` + "\n")
	}
	fmt.Fprintf(&b, "exit %d\n", spec.ExitCode)

	path := filepath.Join(t.TempDir(), "pipeline.sh")
	if err := os.WriteFile(path, []byte(b.String()), 0o755); err != nil {
		t.Fatalf("write pipeline script: %v", err)
	}
	return path
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
