package config

import (
	"reflect"
	"sort"
	"strings"

	logx "cronhost/pkg/logx"
)

// SummarizeChange lists the changed sections and safe log fields describing
// them. Tokens are never logged.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alert_enabled", newCfg.Logging.Alert.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) ||
		strings.TrimSpace(oldCfg.Scheduler.ShutdownTimeout) != strings.TrimSpace(newCfg.Scheduler.ShutdownTimeout) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
			logx.String("scheduler.shutdown_timeout", strings.TrimSpace(newCfg.Scheduler.ShutdownTimeout)),
		)
	}

	var oj, nj JournalConfig
	if oldCfg.Journal != nil {
		oj = *oldCfg.Journal
	}
	if newCfg.Journal != nil {
		nj = *newCfg.Journal
	}
	if oj != nj {
		changed = append(changed, "journal")
		attrs = append(attrs,
			logx.String("journal.driver", strings.TrimSpace(nj.Driver)),
			logx.Bool("journal.path_set", strings.TrimSpace(nj.Path) != ""),
		)
	}

	od, nd := oldCfg.Debug, newCfg.Debug
	od.Token, nd.Token = tokenMark(od.Token), tokenMark(nd.Token)
	if od != nd {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nd.Enabled),
			logx.String("debug.addr", strings.TrimSpace(nd.Addr)),
			logx.Bool("debug.token_set", nd.Token != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.SystemJobs, newCfg.SystemJobs) {
		changed = append(changed, "system_jobs")
		attrs = append(attrs, logx.Int("system_jobs.count", len(newCfg.SystemJobs)))
	}

	removed, added := DiffJobs(oldCfg.Jobs, newCfg.Jobs)
	if len(removed)+len(added) > 0 {
		changed = append(changed, "jobs")
		attrs = append(attrs,
			logx.Int("jobs.removed", len(removed)),
			logx.Int("jobs.added", len(added)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func tokenMark(tok string) string {
	if strings.TrimSpace(tok) == "" {
		return ""
	}
	return "set"
}

// DiffJobs returns the jobs to remove and to add to move from oldJobs to
// newJobs. A job whose definition changed appears in both, keyed by name.
func DiffJobs(oldJobs, newJobs []JobConfig) (removed, added []JobConfig) {
	oldByName := make(map[string]JobConfig, len(oldJobs))
	for _, j := range oldJobs {
		oldByName[strings.TrimSpace(j.Name)] = j
	}
	newByName := make(map[string]JobConfig, len(newJobs))
	for _, j := range newJobs {
		newByName[strings.TrimSpace(j.Name)] = j
	}

	for name, o := range oldByName {
		n, ok := newByName[name]
		if !ok || !sameJob(o, n) {
			removed = append(removed, o)
		}
	}
	for name, n := range newByName {
		o, ok := oldByName[name]
		if !ok || !sameJob(o, n) {
			added = append(added, n)
		}
	}
	byName := func(js []JobConfig) {
		sort.Slice(js, func(i, k int) bool { return js[i].Name < js[k].Name })
	}
	byName(removed)
	byName(added)
	return removed, added
}

func sameJob(a, b JobConfig) bool {
	return strings.TrimSpace(a.Kind) == strings.TrimSpace(b.Kind) &&
		strings.TrimSpace(a.Expression) == strings.TrimSpace(b.Expression) &&
		a.Seconds() == b.Seconds() &&
		strings.TrimSpace(a.NotBefore) == strings.TrimSpace(b.NotBefore) &&
		strings.TrimSpace(a.NotAfter) == strings.TrimSpace(b.NotAfter)
}
