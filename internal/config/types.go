package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Journal   *JournalConfig  `json:"journal,omitempty"`
	Debug     DebugConfig     `json:"debug,omitempty"`

	// SystemJobs are permanent; changes take effect on restart only.
	SystemJobs []JobConfig `json:"system_jobs,omitempty"`
	// Jobs are reconciled on every reload.
	Jobs []JobConfig `json:"jobs,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert forwards lines at or above MinLevel to the journal.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls the engine.
//
// All durations are Go duration strings (e.g. "30s", "10m").
type SchedulerConfig struct {
	// Timezone is an IANA zone used to evaluate cron expressions (default: local).
	Timezone string `json:"timezone,omitempty"`
	// ShutdownTimeout bounds the drain on stop (default: "10m").
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
}

const DefaultShutdownTimeout = 10 * time.Minute

func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" || strings.EqualFold(tz, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

func (s SchedulerConfig) Shutdown() (time.Duration, error) {
	return ParseDuration("scheduler.shutdown_timeout", s.ShutdownTimeout, DefaultShutdownTimeout, time.Second)
}

// JournalConfig controls the optional lifecycle journal.
//
// Example:
//
//	"journal": { "driver": "sqlite", "path": "./data/journal.db" }
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
	Retain      int    `json:"retain,omitempty"`
}

// DebugConfig controls the optional debug HTTP server.
//
// Prefer binding to localhost. A non-loopback Addr requires Token.
type DebugConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:6060"
	Token   string `json:"token,omitempty"`
	Pprof   bool   `json:"pprof,omitempty"`
	Metrics bool   `json:"metrics,omitempty"`
}

// JobConfig declares one job built from a registered kind.
type JobConfig struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Expression string `json:"expression"`
	// UseSeconds selects the 6-field layout (default: true).
	UseSeconds *bool `json:"use_seconds,omitempty"`
	// NotBefore and NotAfter are RFC 3339 instants bounding honored occurrences.
	NotBefore string `json:"not_before,omitempty"`
	NotAfter  string `json:"not_after,omitempty"`
}

func (j JobConfig) Seconds() bool {
	return j.UseSeconds == nil || *j.UseSeconds
}

// Window parses NotBefore and NotAfter. Unset bounds are zero.
func (j JobConfig) Window() (notBefore, notAfter time.Time, err error) {
	if notBefore, err = parseInstant(j.NotBefore); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("not_before: %w", err)
	}
	if notAfter, err = parseInstant(j.NotAfter); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("not_after: %w", err)
	}
	return notBefore, notAfter, nil
}

func parseInstant(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
