package job

import (
	"context"
	"time"
)

// Job is a named unit of schedulable work.
type Job interface {
	// Name is the process-unique key of the job.
	Name() string
	// NextDueTime returns the next instant the job should run.
	// ok=false means there are no further occurrences and the job is retired.
	NextDueTime() (next time.Time, ok bool)
	// Execute runs one occurrence. ctx is cancelled when the host stops.
	Execute(ctx context.Context) error
}

// SystemJob boxes a job registered as permanent. System jobs are started with
// the scheduler and cannot be removed by name.
type SystemJob struct {
	job Job
}

// System marks j as a permanent job.
func System(j Job) SystemJob { return SystemJob{job: j} }

// Job returns the wrapped job (nil for the zero value).
func (s SystemJob) Job() Job { return s.job }

// Configurable is a job whose name and schedule are set after it is built,
// as the host does for config-declared jobs.
type Configurable interface {
	Job
	SetName(name string)
	Schedule() *CronSchedule
}
