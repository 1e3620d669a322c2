package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cronhost/internal/eventbus"
	"cronhost/internal/runtime/supervisor"
	"cronhost/internal/task/job"
	logx "cronhost/pkg/logx"
)

// Config wires the engine to its collaborators. Every field is optional.
type Config struct {
	// SystemJobs are started with the engine and cannot be removed by name.
	SystemJobs []job.SystemJob
	// Registerer receives the engine metrics (nil = not registered).
	Registerer prometheus.Registerer
	// Bus receives job lifecycle events (nil = not published).
	Bus eventbus.Bus
}

// Event types published on the bus. Data is always a JobEvent.
const (
	EventJobAdded     = "job.added"
	EventJobStarted   = "job.started"
	EventJobFinished  = "job.finished"
	EventJobFailed    = "job.failed"
	EventJobRemoved   = "job.removed"
	EventJobExhausted = "job.exhausted"
	EventJobStopped   = "job.stopped"
)

// StopReason says why a job loop ended.
type StopReason string

const (
	StopNoSchedule    StopReason = "no_schedule"
	StopExhausted     StopReason = "exhausted"
	StopHostShutdown  StopReason = "host_shutdown"
	StopRemoved       StopReason = "removed"
	StopSelfCancelled StopReason = "self_cancelled"
	StopFailed        StopReason = "failed"
)

type JobEvent struct {
	Name   string        `json:"name"`
	RunID  string        `json:"run_id,omitempty"`
	System bool          `json:"system,omitempty"`
	Reason StopReason    `json:"reason,omitempty"`
	Err    string        `json:"err,omitempty"`
	Took   time.Duration `json:"took,omitempty"`
}

// JobInfo is a point-in-time view of one registry entry.
type JobInfo struct {
	Name     string    `json:"name"`
	System   bool      `json:"system"`
	Next     time.Time `json:"next"`
	HasNext  bool      `json:"has_next"`
	Runs     uint64    `json:"runs"`
	Failures uint64    `json:"failures"`
	LastRun  time.Time `json:"last_run"`
	LastErr  string    `json:"last_err,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

type Service struct {
	log     logx.Logger
	bus     eventbus.Bus
	metrics *metrics

	systemJobs  []job.SystemJob
	systemNames map[string]struct{}

	mu       sync.Mutex
	started  bool
	stopping bool
	sup      *supervisor.Supervisor
	hostCtx  context.Context
	jobs     map[string]*entry

	// stopped is closed once the first Stop has drained and released every
	// entry; stopErr is its result.
	stopped chan struct{}
	stopErr error
}

// entry is the engine-owned state of one registered job. It leaves the
// registry exactly once: through retire, RemoveJob or Stop.
type entry struct {
	job     job.Job
	name    string
	system  bool
	addedAt time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	done   <-chan struct{}

	mu       sync.Mutex
	next     time.Time
	hasNext  bool
	runs     uint64
	failures uint64
	lastRun  time.Time
	lastErr  string
}

func (e *entry) info() JobInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return JobInfo{
		Name:     e.name,
		System:   e.system,
		Next:     e.next,
		HasNext:  e.hasNext,
		Runs:     e.runs,
		Failures: e.failures,
		LastRun:  e.lastRun,
		LastErr:  e.lastErr,
		AddedAt:  e.addedAt,
	}
}

func (e *entry) noteNext(next time.Time, ok bool) {
	e.mu.Lock()
	e.next, e.hasNext = next, ok
	e.mu.Unlock()
}

func (e *entry) noteRun(at time.Time, err error) {
	e.mu.Lock()
	e.runs++
	e.lastRun = at
	if err != nil {
		e.failures++
		e.lastErr = err.Error()
	}
	e.mu.Unlock()
}
