package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"cronhost/internal/config"
	"cronhost/internal/eventbus"
	"cronhost/internal/observability/debugsrv"
	"cronhost/internal/runtime/supervisor"
	"cronhost/internal/storage"
	"cronhost/internal/task/job"
	"cronhost/internal/task/scheduler"
	logx "cronhost/pkg/logx"
)

// EventLogAlert carries a logx.Alert on the bus.
const EventLogAlert = "log.alert"

// Option customizes an App.
type Option func(*options)

type options struct {
	kinds map[string]KindBuilder
}

// WithKind registers a job kind usable from config. It replaces a built-in
// kind of the same name.
func WithKind(kind string, build KindBuilder) Option {
	return func(o *options) {
		if build != nil {
			o.kinds[strings.ToLower(strings.TrimSpace(kind))] = build
		}
	}
}

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service
	bus  *eventbus.MemBus

	store storage.Store
	rec   *storage.Recorder

	metrics *prometheus.Registry
	kinds   *job.Registry
	sched   *scheduler.Service
	mgr     *scheduler.Manager
	debug   *debugsrv.Service

	sup *supervisor.Supervisor
	loc atomic.Pointer[time.Location]

	// applied is owned by the reload loop once started.
	applied *config.Config

	stopOnce sync.Once
	stopErr  error
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string, opts ...Option) (*App, error) {
	o := options{kinds: builtinKinds()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cfgm := config.NewManager(cfgPath, logx.NewConsole("INFO").With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	sink := logx.AlertSinkFunc(func(_ context.Context, a logx.Alert) error {
		bus.Publish(eventbus.Event{Type: EventLogAlert, Data: a})
		return nil
	})
	logSvc, root := logx.New(mapLogging(cfg.Logging), sink)
	log := root.With(logx.String("comp", "app"))
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	a := &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		metrics: prometheus.NewRegistry(),
		kinds:   job.NewRegistry(),
		applied: cfg,
	}
	a.metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	a.loc.Store(loc)

	for kind, build := range o.kinds {
		kl := root.With(logx.String("comp", "job"), logx.String("kind", kind))
		a.kinds.ProvideKind(kind, func() job.Job { return build(kl) })
	}
	if err := a.validateKinds(context.Background(), cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	if sc, enabled, err := mapJournal(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, root.With(logx.String("comp", "journal")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		a.store = st
		a.rec = storage.NewRecorder(st, bus, root.With(logx.String("comp", "journal")))
		log.Info("journal enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	systemJobs := make([]job.SystemJob, 0, len(cfg.SystemJobs))
	for _, jc := range cfg.SystemJobs {
		j, err := a.kinds.ResolveKind(jc.Kind)
		if err != nil {
			a.closeEarly()
			return nil, fmt.Errorf("system job %q: %w", jc.Name, err)
		}
		configureJob(j, jc, loc)
		systemJobs = append(systemJobs, job.System(j))
	}

	a.sched = scheduler.New(scheduler.Config{
		SystemJobs: systemJobs,
		Registerer: a.metrics,
		Bus:        bus,
	}, root.With(logx.String("comp", "scheduler")))
	a.mgr = scheduler.NewManager(a.sched, a.kinds)

	a.debug = debugsrv.New(mapDebug(cfg.Debug), a.metrics, map[string]debugsrv.Status{
		"jobs":       func() any { return a.sched.Snapshot() },
		"supervisor": func() any { return a.supervisorSnapshot() },
		"bus":        func() any { return bus.Stats() },
		"journal":    a.journalStatus,
	}, root.With(logx.String("comp", "debugsrv")))

	return a, nil
}

func (a *App) closeEarly() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logs.Close()
}

// Manager is the job control surface for the rest of the process.
func (a *App) Manager() *scheduler.Manager { return a.mgr }

// Scheduler exposes the engine for status reporting.
func (a *App) Scheduler() *scheduler.Service { return a.sched }

// Log returns the root app logger.
func (a *App) Log() logx.Logger { return a.log }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	a.cfgm.SetValidator(a.validateKinds)

	if a.rec != nil {
		a.sup.GoRestart("journal.record", a.rec.Run)
	}

	a.sched.Start(a.sup.Context())
	for _, jc := range a.applied.Jobs {
		a.addConfigured(jc)
	}

	a.debug.Start(a.sup.Context())

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.GoRestart("config.watch", a.cfgm.Watch)

	notify(a.log, daemon.SdNotifyReady)
	a.log.Info("app started",
		logx.Int("system_jobs", len(a.sched.SystemJobs())),
		logx.Int("jobs", len(a.sched.Jobs())),
	)
	return nil
}

// Stop drains the scheduler within the configured shutdown timeout, then
// stops the remaining components. Errors from every step are returned
// together. Stop is idempotent.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.stopOnce.Do(func() { a.stopErr = a.stop(ctx, reason) })
	return a.stopErr
}

func (a *App) stop(ctx context.Context, reason StopReason) error {
	notify(a.log, daemon.SdNotifyStopping)
	a.log.Info("stopping", logx.String("reason", string(reason)))

	timeout := config.DefaultShutdownTimeout
	if cfg := a.cfgm.Get(); cfg != nil {
		if d, err := cfg.Scheduler.Shutdown(); err == nil {
			timeout = d
		}
	}

	var errs *multierror.Error
	// step bounds fn by max (0 = the shutdown timeout), never past the
	// caller's deadline.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		if max <= 0 {
			max = timeout
		}
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		err := fn(stepCtx)
		took := time.Since(start)
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err), logx.Duration("took", took))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	}

	step("scheduler", 0, a.sched.Stop)
	step("debugsrv", 2*time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })

	// Cancel after the drain so the journal records the final job events.
	a.sup.Cancel()
	step("supervisor", 2*time.Second, a.sup.Wait)
	step("journal", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped", logx.String("reason", string(reason)))
	if err := a.logs.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("logs: %w", err))
	}
	return errs.ErrorOrNil()
}

// addConfigured builds a job of jc.Kind and adds it through the manager.
func (a *App) addConfigured(jc config.JobConfig) bool {
	loc := a.loc.Load()
	ok, err := a.mgr.AddKind(jc.Kind, func(j job.Job) { configureJob(j, jc, loc) })
	if err != nil {
		a.log.Warn("job not added", logx.String("job", jc.Name), logx.String("kind", jc.Kind), logx.Err(err))
		return false
	}
	return ok
}

// validateKinds rejects configs naming a kind nothing provides.
func (a *App) validateKinds(_ context.Context, cfg *config.Config) error {
	var errs *multierror.Error
	for _, section := range []struct {
		name string
		jobs []config.JobConfig
	}{{"system_jobs", cfg.SystemJobs}, {"jobs", cfg.Jobs}} {
		for i, jc := range section.jobs {
			if _, err := a.kinds.ResolveKind(jc.Kind); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s[%d]: %w", section.name, i, err))
			}
		}
	}
	return errs.ErrorOrNil()
}

func (a *App) supervisorSnapshot() any {
	if a.sup == nil {
		return nil
	}
	return a.sup.Snapshot()
}

func (a *App) journalStatus() any {
	if a.store == nil {
		return map[string]any{"enabled": false}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	recs, err := a.store.Recent(ctx, "", 50)
	if err != nil {
		return map[string]any{"enabled": true, "err": err.Error()}
	}
	return map[string]any{"enabled": true, "recent": recs}
}

// notify reports state to systemd. It is a no-op outside a notify unit.
func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}
