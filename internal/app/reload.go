package app

import (
	"context"
	"strings"
	"time"

	"cronhost/internal/config"
	logx "cronhost/pkg/logx"
)

// removeTimeout bounds how long a reload waits for a removed job's loop to
// exit. The job is unregistered at once either way.
const removeTimeout = 5 * time.Second

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					drained = true
				}
			}
			if cfg != nil {
				a.apply(ctx, cfg)
			}
		}
	}
}

// apply reconciles the running host with a validated config.
func (a *App) apply(ctx context.Context, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(a.applied, newCfg)
	if len(sections) == 0 {
		a.applied = newCfg
		a.log.Info("config reloaded (no changes)")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	a.logs.Apply(mapLogging(newCfg.Logging))

	for _, s := range sections {
		switch s {
		case "journal", "system_jobs":
			a.log.Warn(s + " config changed; restart required for changes to take effect")
		case "scheduler":
			if loc, err := newCfg.Scheduler.Location(); err == nil && loc.String() != a.loc.Load().String() {
				a.loc.Store(loc)
				a.log.Warn("scheduler.timezone changed; running jobs keep their zone until re-added",
					logx.String("timezone", loc.String()))
			}
		}
	}

	a.debug.Reconfigure(ctx, mapDebug(newCfg.Debug))
	a.reconcileJobs(ctx, a.applied.Jobs, newCfg.Jobs)
	a.applied = newCfg

	a.log.Info("config reloaded", fields...)
}

// reconcileJobs removes jobs that left the config and adds the new ones.
// A changed job is removed and added again under the same name.
func (a *App) reconcileJobs(ctx context.Context, oldJobs, newJobs []config.JobConfig) {
	removed, added := config.DiffJobs(oldJobs, newJobs)
	for _, jc := range removed {
		rctx, cancel := context.WithTimeout(ctx, removeTimeout)
		a.mgr.RemoveJob(rctx, strings.TrimSpace(jc.Name))
		cancel()
	}
	for _, jc := range added {
		a.addConfigured(jc)
	}
	if len(removed)+len(added) > 0 {
		a.log.Debug("jobs reconciled", logx.Int("removed", len(removed)), logx.Int("added", len(added)))
	}
}
