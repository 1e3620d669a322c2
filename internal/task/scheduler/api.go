package scheduler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cronhost/internal/task/job"
	logx "cronhost/pkg/logx"
)

// AddJob registers j and spawns its loop. It returns false if the name is
// already registered or the engine is not running.
func (s *Service) AddJob(j job.Job) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(j, false)
}

func (s *Service) addLocked(j job.Job, system bool) bool {
	if j == nil {
		s.log.Warn("job rejected", logx.Err(ErrInvalidJob))
		return false
	}
	name := j.Name()
	if !s.started || s.hostStoppingLocked() {
		s.log.Warn(fmt.Sprintf("%s cannot be added while the scheduler is not running.", name),
			logx.String("job", name), logx.Err(ErrNotRunning))
		return false
	}
	if _, exists := s.jobs[name]; exists {
		s.log.Warn(fmt.Sprintf("%s already exist. You have to remove existing before adding new.", name),
			logx.String("job", name), logx.Err(ErrDuplicateJobName))
		return false
	}

	ctx, cancel := context.WithCancelCause(s.hostCtx)
	e := &entry{
		job:     j,
		name:    name,
		system:  system,
		addedAt: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.jobs[name] = e
	s.metrics.jobAdded(system)
	s.publish(EventJobAdded, JobEvent{Name: name, System: system})
	e.done = s.sup.Go("job:"+name, func(hostCtx context.Context) error {
		defer s.retire(e)
		s.loop(hostCtx, e)
		return nil
	})
	return true
}

// retire is the natural-completion path of a loop. The entry is dropped only
// if the host is not stopping and the name still maps to this entry.
func (s *Service) retire(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostStoppingLocked() {
		return
	}
	if cur, ok := s.jobs[e.name]; !ok || cur != e {
		return
	}
	delete(s.jobs, e.name)
	e.cancel(context.Canceled)
	s.metrics.jobRemoved(e.system)
}

// RemoveJob stops and unregisters the non-system job called name. It waits
// for the loop to exit; an execution in progress is allowed to finish first.
// It returns false if ctx ends before the loop has exited.
func (s *Service) RemoveJob(ctx context.Context, name string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.systemNames[name]; ok {
		s.log.Error(fmt.Sprintf("%s is a system job and cannot be removed.", name),
			logx.String("job", name), logx.Err(ErrSystemJobRemoval))
		return false
	}

	s.mu.Lock()
	e, ok := s.jobs[name]
	if ok && e.system {
		s.mu.Unlock()
		s.log.Error(fmt.Sprintf("%s is a system job and cannot be removed.", name),
			logx.String("job", name), logx.Err(ErrSystemJobRemoval))
		return false
	}
	if ok {
		delete(s.jobs, name)
		s.metrics.jobRemoved(e.system)
	}
	s.mu.Unlock()
	if !ok {
		s.log.Warn(fmt.Sprintf("Could not find the job %s.", name),
			logx.String("job", name), logx.Err(ErrJobNotFound))
		return false
	}

	e.cancel(ErrJobRemoved)
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-e.done:
	case <-ctx.Done():
		s.log.Warn(fmt.Sprintf("%s was unregistered but its loop has not exited yet.", name),
			logx.String("job", name), logx.Err(ctx.Err()))
		return false
	}

	s.log.Info(fmt.Sprintf("The job %s is removed from the scheduler.", name), logx.String("job", name))
	s.publish(EventJobRemoved, JobEvent{Name: name, Reason: StopRemoved})
	return true
}

// Jobs returns the registered non-system jobs sorted by name.
func (s *Service) Jobs() []job.Job { return s.list(false) }

// SystemJobs returns the registered system jobs sorted by name.
func (s *Service) SystemJobs() []job.Job { return s.list(true) }

func (s *Service) list(system bool) []job.Job {
	out := []job.Job{}
	if s == nil {
		return out
	}
	for _, e := range s.entries() {
		if e.system == system {
			out = append(out, e.job)
		}
	}
	return out
}

// Snapshot returns a view of every registered job sorted by name.
func (s *Service) Snapshot() []JobInfo {
	if s == nil {
		return []JobInfo{}
	}
	es := s.entries()
	out := make([]JobInfo, 0, len(es))
	for _, e := range es {
		out = append(out, e.info())
	}
	return out
}

func (s *Service) entries() []*entry {
	s.mu.Lock()
	es := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		es = append(es, e)
	}
	s.mu.Unlock()
	sort.Slice(es, func(i, j int) bool { return es[i].name < es[j].name })
	return es
}
