// Package scheduler owns the job lifecycle: admission, the FIFO queue, the
// single worker loop that runs at most one pipeline process at a time, and
// cooperative cancellation. All shared state sits behind one mutex; the
// worker goroutine is the only writer of process-derived job fields, so
// handlers observe consistent snapshots without coordinating with the run.
package scheduler
