package proctree

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

// tailLines bounds the retained output tail per process.
const tailLines = 200

// Spec describes one external process launch.
type Spec struct {
	Binary string
	Args   []string
	Dir    string
	// Env entries are appended to the daemon's environment.
	Env []string
}

// Handle supervises one spawned process tree.
type Handle struct {
	cmd *exec.Cmd
	pid int

	lines chan string

	mu         sync.Mutex
	tail       []string
	terminated bool

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}
}

// Spawn starts the process described by spec and begins streaming its
// combined stdout and stderr. The child is placed in its own process group
// so a group signal can reach descendants even when enumeration fails.
func Spawn(spec Spec) (*Handle, error) {
	if spec.Binary == "" {
		return nil, errors.New("binary required")
	}
	cmd := exec.Command(spec.Binary, spec.Args...) //nolint:gosec
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	setSysProcAttr(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Binary, err)
	}

	h := &Handle{
		cmd:   cmd,
		pid:   cmd.Process.Pid,
		lines: make(chan string, 64),
		done:  make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go h.scan(stdout, &wg)
	go h.scan(stderr, &wg)
	go func() {
		wg.Wait()
		close(h.lines)
		h.waitOnce.Do(func() {
			h.waitErr = cmd.Wait()
		})
		close(h.done)
	}()
	return h, nil
}

func (h *Handle) scan(r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		h.appendTail(line)
		h.lines <- line
	}
}

func (h *Handle) appendTail(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tail = append(h.tail, line)
	if len(h.tail) > tailLines {
		h.tail = h.tail[len(h.tail)-tailLines:]
	}
}

// PID returns the root process identifier.
func (h *Handle) PID() int { return h.pid }

// Lines yields combined stdout/stderr output line by line. The channel is
// closed when both streams reach EOF.
func (h *Handle) Lines() <-chan string { return h.lines }

// Tail returns a copy of the most recent output lines.
func (h *Handle) Tail() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.tail))
	copy(out, h.tail)
	return out
}

// Wait blocks until the process exits and output draining completes.
func (h *Handle) Wait() error {
	<-h.done
	return h.waitErr
}

// ExitCode reports the exit status after Wait has returned. The boolean is
// false while the process is still running.
func (h *Handle) ExitCode() (int, bool) {
	select {
	case <-h.done:
	default:
		return 0, false
	}
	if h.waitErr == nil {
		return 0, true
	}
	var exitErr *exec.ExitError
	if errors.As(h.waitErr, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return -1, true
}

// Terminate stops the entire process tree: descendants before the root,
// a graceful signal first, then force after grace elapses. Calling it on
// an already-exited or already-terminated tree is a no-op.
func (h *Handle) Terminate(grace time.Duration) error {
	h.mu.Lock()
	if h.terminated {
		h.mu.Unlock()
		return nil
	}
	h.terminated = true
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil
	default:
	}
	return terminateTree(h.pid, grace)
}
