// Package scheduler runs recurring jobs inside the host process.
//
// Service is the engine. It owns the live registry of jobs and runs one
// wait/execute loop per job under a supervisor:
//   - the wait for the next due time stops on host shutdown or job removal
//   - Execute only sees the host context, so removal never interrupts a run
//   - a job with no further due time leaves the registry on its own
//
// Manager is the control surface handed to the rest of the process. It
// delegates to whichever Engine was attached and carries no scheduling state.
package scheduler
