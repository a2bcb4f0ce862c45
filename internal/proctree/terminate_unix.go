//go:build unix

package proctree

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	gops "github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateTree(pid int, grace time.Duration) error {
	root, err := gops.NewProcess(int32(pid))
	if err != nil {
		// Enumeration unavailable; fall back to signalling the group.
		return killGroup(pid, grace)
	}

	procs := append(descendants(root), root)
	for _, p := range procs {
		_ = p.Terminate()
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !anyRunning(procs) {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	for _, p := range procs {
		if running, _ := p.IsRunning(); running {
			_ = p.Kill()
		}
	}

	// Sweep the process group for anything that re-parented mid-kill.
	_ = unix.Kill(-pid, unix.SIGKILL)
	return nil
}

// descendants returns the transitive children of p, deepest first, so
// leaves receive signals before their parents.
func descendants(p *gops.Process) []*gops.Process {
	children, err := p.Children()
	if err != nil {
		return nil
	}
	var out []*gops.Process
	for _, c := range children {
		out = append(out, descendants(c)...)
		out = append(out, c)
	}
	return out
}

func anyRunning(procs []*gops.Process) bool {
	for _, p := range procs {
		if running, _ := p.IsRunning(); running {
			return true
		}
	}
	return false
}

func killGroup(pid int, grace time.Duration) error {
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal process group %d: %w", pid, err)
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if err := unix.Kill(-pid, 0); errors.Is(err, unix.ESRCH) {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill process group %d: %w", pid, err)
	}
	return nil
}
