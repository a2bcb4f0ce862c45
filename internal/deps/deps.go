// Package deps inspects the external programs the dubbing pipeline relies
// on. Missing optional tools degrade features; missing required ones mean
// jobs will fail at spawn.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"transvox/internal/config"
)

// Requirement defines an external dependency transvox relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig builds the requirement set for a configuration.
func ForConfig(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "python",
			Command:     cfg.Pipeline.Python,
			Description: "interpreter that runs the dubbing pipeline",
		},
		{
			Name:        "ffprobe",
			Command:     "ffprobe",
			Description: "media inspection for submission limits",
			Optional:    true,
		},
	}
}

// Check evaluates binaries and the pipeline script for a configuration.
func Check(cfg *config.Config) []Status {
	results := CheckBinaries(ForConfig(cfg))
	results = append(results, checkScript(cfg))
	return results
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// checkScript verifies the pipeline entry script exists when it is given as
// a path. A bare name resolves against the pipeline working directory.
func checkScript(cfg *config.Config) Status {
	script := strings.TrimSpace(cfg.Pipeline.Script)
	status := Status{
		Name:        "pipeline script",
		Command:     script,
		Description: "dubbing pipeline entrypoint",
	}
	if script == "" {
		status.Detail = "script not configured"
		return status
	}
	path := script
	if !filepath.IsAbs(path) && cfg.Pipeline.WorkDir != "" {
		path = filepath.Join(cfg.Pipeline.WorkDir, script)
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		status.Detail = fmt.Sprintf("script %q not found", path)
		return status
	}
	status.Available = true
	return status
}

// Missing filters statuses down to unavailable required dependencies.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
