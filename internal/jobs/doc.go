// Package jobs defines the Job model, its lifecycle states, and the in-memory
// registry that is the authoritative store of every submitted job.
//
// The registry carries no lock of its own: the scheduler owns it and guards
// every access with its mutex, which is what makes "check admission, then
// enqueue" a single atomic step.
package jobs
