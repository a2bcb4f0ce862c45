//go:build windows

package proctree

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

func terminateTree(pid int, grace time.Duration) error {
	_ = grace // taskkill /F is immediate; there is no graceful tree signal
	out, err := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F").CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if strings.Contains(msg, "not found") {
			return nil
		}
		return fmt.Errorf("taskkill pid %d: %w: %s", pid, err, msg)
	}
	return nil
}
