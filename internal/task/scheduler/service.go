package scheduler

import (
	"context"
	"time"

	"cronhost/internal/eventbus"
	"cronhost/internal/runtime/supervisor"
	logx "cronhost/pkg/logx"
)

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:         log,
		bus:         cfg.Bus,
		metrics:     newMetrics(cfg.Registerer),
		systemNames: map[string]struct{}{},
		jobs:        map[string]*entry{},
	}
	for _, sj := range cfg.SystemJobs {
		if sj.Job() == nil {
			continue
		}
		s.systemJobs = append(s.systemJobs, sj)
		s.systemNames[sj.Job().Name()] = struct{}{}
	}
	return s
}

// Start records ctx as the host shutdown signal and spawns the loop of every
// system job before returning. Calling Start again is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopping {
		return
	}
	s.sup = supervisor.New(ctx, supervisor.WithLogger(s.log.With(logx.String("comp", "supervisor"))))
	s.hostCtx = s.sup.Context()
	s.started = true

	for _, sj := range s.systemJobs {
		s.addLocked(sj.Job(), true)
	}
	s.log.Info("service started", logx.Int("system_jobs", len(s.systemJobs)))
}

// Stop cancels the host signal and waits for every job loop to exit, bounded
// by ctx. In-flight executions that ignore cancellation are waited for.
// Remaining entries are released afterwards. Stop is idempotent: later calls
// wait for the first one, bounded by their own ctx, and return its result.
func (s *Service) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	s.mu.Lock()
	if s.stopping {
		done := s.stopped
		s.mu.Unlock()
		select {
		case <-done:
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.stopErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.stopping = true
	s.stopped = make(chan struct{})
	done := s.stopped
	sup := s.sup
	s.mu.Unlock()
	defer close(done)

	if sup == nil {
		return nil
	}
	s.log.Info("stop requested")
	err := sup.Stop(ctx)

	s.mu.Lock()
	n := len(s.jobs)
	for name, e := range s.jobs {
		delete(s.jobs, name)
		e.cancel(context.Canceled)
		s.metrics.jobRemoved(e.system)
	}
	s.stopErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("service stopped before every job finished", logx.Err(err), logx.Duration("took", time.Since(start)))
		return err
	}
	s.log.Info("service stopped", logx.Int("released", n), logx.Duration("took", time.Since(start)))
	return nil
}

// hostStoppingLocked reports whether the host signal fired or Stop began.
func (s *Service) hostStoppingLocked() bool {
	return s.stopping || (s.hostCtx != nil && s.hostCtx.Err() != nil)
}

func (s *Service) publish(typ string, ev JobEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Data: ev})
}
