// Package storage keeps a journal of job lifecycle events.
//
// The journal is history only: schedules are never restored from it. Two
// backends exist, a JSON Lines file and a SQLite database. Recorder feeds a
// Store from the event bus.
package storage
