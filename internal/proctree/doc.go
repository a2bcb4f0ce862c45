// Package proctree spawns external pipeline processes and supervises the
// whole process tree they create. A Handle streams combined stdout/stderr
// lines, keeps a bounded tail for failure diagnostics, and supports
// idempotent tree termination: descendants first, graceful signal before
// force, with a process-group fallback when enumeration fails.
package proctree
