package app

import (
	"strings"
	"time"

	"cronhost/internal/config"
	"cronhost/internal/observability/debugsrv"
	"cronhost/internal/storage"
	"cronhost/internal/task/job"
	logx "cronhost/pkg/logx"
)

func mapLogging(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    c.Alert.Enabled,
			MinLevel:   c.Alert.MinLevel,
			RatePerSec: c.Alert.RatePerSec,
		},
	}
}

// mapJournal returns false when the journal is disabled.
func mapJournal(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Journal == nil {
		return storage.Config{}, false, nil
	}
	jc := cfg.Journal
	driver := strings.ToLower(strings.TrimSpace(jc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDuration("journal.busy_timeout", jc.BusyTimeout, time.Second, 0)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(jc.Path),
		BusyTimeout: busy,
		Retain:      jc.Retain,
	}, true, nil
}

func mapDebug(c config.DebugConfig) debugsrv.Config {
	return debugsrv.Config{
		Enabled: c.Enabled,
		Addr:    strings.TrimSpace(c.Addr),
		Token:   strings.TrimSpace(c.Token),
		Pprof:   c.Pprof,
		Metrics: c.Metrics,
	}
}

// configureJob applies a config entry to a freshly built job. Jobs that do
// not implement job.Configurable keep their own name and schedule.
func configureJob(j job.Job, jc config.JobConfig, loc *time.Location) {
	c, ok := j.(job.Configurable)
	if !ok {
		return
	}
	// Window was checked by config.Validate.
	notBefore, notAfter, _ := jc.Window()

	c.SetName(strings.TrimSpace(jc.Name))
	s := c.Schedule()
	s.Expression = strings.TrimSpace(jc.Expression)
	s.UseSeconds = jc.Seconds()
	s.NotBefore = notBefore
	s.NotAfter = notAfter
	s.Location = loc
}
