//go:build unix

package proctree_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transvox/internal/proctree"
)

func collectLines(h *proctree.Handle) []string {
	var lines []string
	for line := range h.Lines() {
		lines = append(lines, line)
	}
	return lines
}

func TestSpawnStreamsCombinedOutput(t *testing.T) {
	h, err := proctree.Spawn(proctree.Spec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo out1; echo err1 >&2; echo out2"},
	})
	require.NoError(t, err)

	lines := collectLines(h)
	require.NoError(t, h.Wait())

	assert.ElementsMatch(t, []string{"out1", "err1", "out2"}, lines)
	assert.ElementsMatch(t, []string{"out1", "err1", "out2"}, h.Tail())

	code, done := h.ExitCode()
	require.True(t, done)
	assert.Equal(t, 0, code)
}

func TestSpawnReportsNonZeroExit(t *testing.T) {
	h, err := proctree.Spawn(proctree.Spec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "echo failing; exit 3"},
	})
	require.NoError(t, err)

	collectLines(h)
	require.Error(t, h.Wait())

	code, done := h.ExitCode()
	require.True(t, done)
	assert.Equal(t, 3, code)
}

func TestSpawnMissingBinary(t *testing.T) {
	_, err := proctree.Spawn(proctree.Spec{Binary: "/nonexistent/transvox-test-binary"})
	require.Error(t, err)
}

func TestExitCodeBeforeExit(t *testing.T) {
	h, err := proctree.Spawn(proctree.Spec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "sleep 5"},
	})
	require.NoError(t, err)
	defer func() {
		_ = h.Terminate(100 * time.Millisecond)
		collectLines(h)
		_ = h.Wait()
	}()

	_, done := h.ExitCode()
	assert.False(t, done)
}

func TestTerminateStopsTree(t *testing.T) {
	// The shell spawns a child sleep; both must be gone after Terminate.
	h, err := proctree.Spawn(proctree.Spec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "sleep 30 & echo started; wait"},
	})
	require.NoError(t, err)

	done := make(chan []string, 1)
	go func() { done <- collectLines(h) }()

	// Wait for the marker so the child exists before termination.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("process never produced output")
		default:
		}
		if len(h.Tail()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	start := time.Now()
	require.NoError(t, h.Terminate(500*time.Millisecond))
	_ = h.Wait()
	assert.Less(t, time.Since(start), 10*time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("line channel never closed")
	}

	code, exited := h.ExitCode()
	require.True(t, exited)
	assert.NotEqual(t, 0, code)
}

func TestTerminateIdempotent(t *testing.T) {
	h, err := proctree.Spawn(proctree.Spec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "sleep 30"},
	})
	require.NoError(t, err)

	go collectLines(h)
	require.NoError(t, h.Terminate(200*time.Millisecond))
	require.NoError(t, h.Terminate(200*time.Millisecond))
	_ = h.Wait()
	require.NoError(t, h.Terminate(200*time.Millisecond))
}

func TestTerminateAfterNaturalExit(t *testing.T) {
	h, err := proctree.Spawn(proctree.Spec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "true"},
	})
	require.NoError(t, err)
	collectLines(h)
	require.NoError(t, h.Wait())
	require.NoError(t, h.Terminate(time.Second))
}
