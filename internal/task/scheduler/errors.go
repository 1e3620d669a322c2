package scheduler

import (
	"context"
	"errors"
)

var (
	ErrDuplicateJobName = errors.New("job name already registered")
	ErrJobNotFound      = errors.New("job not found")
	ErrSystemJobRemoval = errors.New("system job cannot be removed")
	ErrNotRunning       = errors.New("scheduler not running")
	ErrInvalidJob       = errors.New("invalid job")

	// ErrJobRemoved is the cancel cause of a job context when the job is
	// removed by name.
	ErrJobRemoved = errors.New("job removed")
)

// isCancellation reports whether err is the shape of a cooperative stop
// rather than a failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
