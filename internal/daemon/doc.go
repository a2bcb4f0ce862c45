// Package daemon binds the scheduler, the job archive, and the HTTP API
// into a single lifecycle with flock-based locking to prevent multiple
// daemon instances from contending over the same directories.
package daemon
