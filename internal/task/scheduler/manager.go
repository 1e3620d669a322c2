package scheduler

import (
	"context"

	"cronhost/internal/task/job"
)

// Engine is the control surface a Manager delegates to. *Service implements it.
type Engine interface {
	AddJob(j job.Job) bool
	RemoveJob(ctx context.Context, name string) bool
	Jobs() []job.Job
	SystemJobs() []job.Job
}

var _ Engine = (*Service)(nil)

// Manager exposes job control to the rest of the process. With no engine
// attached every add or remove returns false and enumerations are empty.
type Manager struct {
	engine   Engine
	resolver job.Resolver
}

func NewManager(engine Engine, resolver job.Resolver) *Manager {
	return &Manager{engine: engine, resolver: resolver}
}

func (m *Manager) AddJob(j job.Job) bool {
	if m == nil || m.engine == nil {
		return false
	}
	return m.engine.AddJob(j)
}

// AddJobOf resolves a fresh T, applies setup to it, and adds it.
// It fails with job.ErrUnresolvedJobType if no T can be produced.
func AddJobOf[T job.Job](m *Manager, setup func(T)) (bool, error) {
	var r job.Resolver
	if m != nil {
		r = m.resolver
	}
	j, err := job.Resolve[T](r)
	if err != nil {
		return false, err
	}
	if setup != nil {
		setup(j)
	}
	return m.AddJob(j), nil
}

// AddKind is AddJobOf for a job registered under a string kind.
func (m *Manager) AddKind(kind string, setup func(job.Job)) (bool, error) {
	var r job.Resolver
	if m != nil {
		r = m.resolver
	}
	if r == nil {
		return false, job.ErrUnresolvedJobType
	}
	j, err := r.ResolveKind(kind)
	if err != nil {
		return false, err
	}
	if setup != nil {
		setup(j)
	}
	return m.AddJob(j), nil
}

func (m *Manager) RemoveJob(ctx context.Context, name string) bool {
	if m == nil || m.engine == nil {
		return false
	}
	return m.engine.RemoveJob(ctx, name)
}

func (m *Manager) Jobs() []job.Job {
	if m == nil || m.engine == nil {
		return []job.Job{}
	}
	return m.engine.Jobs()
}

func (m *Manager) SystemJobs() []job.Job {
	if m == nil || m.engine == nil {
		return []job.Job{}
	}
	return m.engine.SystemJobs()
}
