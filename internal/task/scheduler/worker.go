package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	logx "cronhost/pkg/logx"
)

const timeLayout = time.RFC3339

// stalePoll is how long the loop waits before asking again when a job
// reports a due time that has already run.
const stalePoll = 100 * time.Millisecond

var reasonText = map[StopReason]string{
	StopRemoved:       "the job is removed",
	StopSelfCancelled: "the job cancelled itself",
	StopFailed:        "it failed unexpectedly",
}

// panicError carries a recovered panic out of Execute.
type panicError struct {
	value any
	stack string
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// loop waits for each due time of e and runs it until the job is exhausted,
// removed, cancels itself, fails, or the host stops.
func (s *Service) loop(hostCtx context.Context, e *entry) {
	name := e.name
	log := s.log.With(logx.String("job", name))

	next, ok := e.job.NextDueTime()
	e.noteNext(next, ok)
	if !ok {
		s.logScheduleErr(log, e)
		log.Warn(fmt.Sprintf("%s does not have any scheduled time, the job is not started.", name))
		s.publish(EventJobExhausted, JobEvent{Name: name, System: e.system, Reason: StopNoSchedule})
		return
	}
	log.Info(fmt.Sprintf("Starting the scheduler for %s.", name))

	reason := StopExhausted
	var lastDue time.Time
	for {
		due, ok := e.job.NextDueTime()
		e.noteNext(due, ok)
		if !ok {
			s.logScheduleErr(log, e)
			break
		}

		// A due at or before the one just run is the same occurrence.
		stale := !lastDue.IsZero() && !due.After(lastDue)
		if stale {
			log.Trace(fmt.Sprintf("%s reported %s again, waiting for the next occurrence", name, due.Format(timeLayout)))
			due = time.Now().Add(stalePoll)
		} else {
			log.Trace(fmt.Sprintf("%s is scheduled to start %s", name, due.Format(timeLayout)), logx.Time("due", due))
		}

		if !waitUntil(e.ctx, due) {
			if hostCtx.Err() != nil {
				reason = StopHostShutdown
				log.Info(fmt.Sprintf("%s that should have started %s has been cancelled because the host is shutting down.", name, due.Format(timeLayout)))
			} else {
				reason = StopRemoved
				log.Info(fmt.Sprintf("%s that should have started %s has been cancelled because the job is removed.", name, due.Format(timeLayout)))
			}
			break
		}
		if stale {
			continue
		}

		lastDue = due
		if r, stop := s.runOnce(hostCtx, e, log); stop {
			reason = r
			break
		}
	}

	switch reason {
	case StopExhausted:
		log.Info(fmt.Sprintf("%s has been removed from the scheduler since there was no more scheduled execution times.", name))
		s.publish(EventJobExhausted, JobEvent{Name: name, System: e.system, Reason: reason})
	case StopHostShutdown:
		log.Info(fmt.Sprintf("%s has not been rescheduled since the host is shutting down.", name))
		s.publish(EventJobStopped, JobEvent{Name: name, System: e.system, Reason: reason})
	default:
		log.Info(fmt.Sprintf("%s has not been rescheduled since %s.", name, reasonText[reason]), logx.String("reason", string(reason)))
		s.publish(EventJobStopped, JobEvent{Name: name, System: e.system, Reason: reason})
	}
}

// runOnce executes one occurrence with the host context. stop is true when
// the loop must end, with the reason why.
func (s *Service) runOnce(hostCtx context.Context, e *entry, log logx.Logger) (StopReason, bool) {
	name := e.name
	runID := uuid.NewString()
	log = log.With(logx.String("run_id", runID))

	startedAt := time.Now()
	log.Trace(fmt.Sprintf("%s is starting at %s", name, startedAt.Format(timeLayout)))
	s.publish(EventJobStarted, JobEvent{Name: name, RunID: runID, System: e.system})

	err := execute(hostCtx, e)
	took := time.Since(startedAt)
	e.noteRun(startedAt, err)
	log.Trace(fmt.Sprintf("%s stopped at %s", name, time.Now().Format(timeLayout)), logx.Duration("took", took))

	switch {
	case err == nil:
		s.metrics.observeRun(name, resultSuccess, took)
		s.publish(EventJobFinished, JobEvent{Name: name, RunID: runID, System: e.system, Took: took})
		return "", false

	case isCancellation(err):
		s.metrics.observeRun(name, resultCancelled, took)
		at := startedAt.Format(timeLayout)
		if hostCtx.Err() != nil {
			log.Info(fmt.Sprintf("%s that started at %s has been cancelled during execution because the host is shutting down.", name, at))
			return StopHostShutdown, true
		}
		log.Info(fmt.Sprintf("%s that started at %s has been cancelled by the job itself.", name, at))
		return StopSelfCancelled, true

	default:
		s.metrics.observeRun(name, resultFailure, took)
		fields := []logx.Field{logx.Err(err), logx.Duration("took", took)}
		var pe *panicError
		if errors.As(err, &pe) {
			fields = append(fields, logx.Stack(pe.stack))
		}
		log.Error(fmt.Sprintf("%s failed unexpectedly.", name), fields...)
		s.publish(EventJobFailed, JobEvent{Name: name, RunID: runID, System: e.system, Reason: StopFailed, Err: err.Error(), Took: took})
		return StopFailed, true
	}
}

func execute(ctx context.Context, e *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return e.job.Execute(ctx)
}

// waitUntil blocks until due or until ctx ends. It reports whether due was
// reached with ctx still live.
func waitUntil(ctx context.Context, due time.Time) bool {
	d := time.Until(due)
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return ctx.Err() == nil
	}
}

type scheduleErrer interface{ ScheduleErr() error }

func (s *Service) logScheduleErr(log logx.Logger, e *entry) {
	se, ok := e.job.(scheduleErrer)
	if !ok {
		return
	}
	if err := se.ScheduleErr(); err != nil {
		log.Error(fmt.Sprintf("%s has an invalid schedule expression.", e.name), logx.Err(err))
	}
}
