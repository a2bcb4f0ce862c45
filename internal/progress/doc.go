// Package progress classifies pipeline-runner output lines into coarse
// (stage, percent) observations.
//
// The classifier is a versioned, priority-ordered table of substring
// matchers over the log text the runner is known to emit, one anchor percent
// per stage. It is stateless and total: classification of a line never
// depends on previously seen lines, and unknown lines classify to nothing.
// The anchors are heuristic by nature; when the upstream tool changes its
// log format, only this table needs to move.
package progress
