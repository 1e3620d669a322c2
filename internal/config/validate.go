package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-multierror"

	"cronhost/internal/task/cronexpr"
	logx "cronhost/pkg/logx"
)

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	var errs *multierror.Error

	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = multierror.Append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}
	if cfg.Logging.File.Enabled && strings.TrimSpace(cfg.Logging.File.Path) == "" {
		errs = multierror.Append(errs, fmt.Errorf("logging.file.path is required when enabled"))
	}
	if a := cfg.Logging.Alert; a.Enabled && !logx.ValidLevel(a.MinLevel) {
		errs = multierror.Append(errs, fmt.Errorf("logging.alert.min_level: unknown level %q", a.MinLevel))
	}

	if _, err := cfg.Scheduler.Location(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := cfg.Scheduler.Shutdown(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if j := cfg.Journal; j != nil {
		switch strings.ToLower(strings.TrimSpace(j.Driver)) {
		case "", "none":
		case "file", "sqlite", "sqlite3":
			if strings.TrimSpace(j.Path) == "" {
				errs = multierror.Append(errs, fmt.Errorf("journal.path is required for driver %q", j.Driver))
			}
		default:
			errs = multierror.Append(errs, fmt.Errorf("journal.driver: unknown driver %q", j.Driver))
		}
		if _, err := ParseDuration("journal.busy_timeout", j.BusyTimeout, 0, 0); err != nil {
			errs = multierror.Append(errs, err)
		}
		if j.Retain < 0 {
			errs = multierror.Append(errs, fmt.Errorf("journal.retain must be >= 0"))
		}
	}

	if d := cfg.Debug; d.Enabled {
		addr := strings.TrimSpace(d.Addr)
		if addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("debug.addr: %w", err))
			}
		}
		if !isLoopbackAddr(addr) && strings.TrimSpace(d.Token) == "" {
			errs = multierror.Append(errs, fmt.Errorf("debug.token is required for non-loopback addr %q", addr))
		}
	}

	seen := map[string]string{}
	for _, section := range []struct {
		name string
		jobs []JobConfig
	}{{"system_jobs", cfg.SystemJobs}, {"jobs", cfg.Jobs}} {
		for i, j := range section.jobs {
			path := fmt.Sprintf("%s[%d]", section.name, i)
			for _, err := range validateJob(j) {
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", path, err))
			}
			name := strings.TrimSpace(j.Name)
			if name == "" {
				continue
			}
			if prev, dup := seen[name]; dup {
				errs = multierror.Append(errs, fmt.Errorf("%s: duplicate job name %q (first at %s)", path, name, prev))
				continue
			}
			seen[name] = path
		}
	}

	return errs.ErrorOrNil()
}

func validateJob(j JobConfig) []error {
	var errs []error
	if strings.TrimSpace(j.Name) == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if strings.TrimSpace(j.Kind) == "" {
		errs = append(errs, fmt.Errorf("kind is required"))
	}
	if err := cronexpr.Default.Validate(j.Expression, j.Seconds()); err != nil {
		errs = append(errs, fmt.Errorf("expression: %w", err))
	}
	nb, na, err := j.Window()
	if err != nil {
		errs = append(errs, err)
	} else if !nb.IsZero() && !na.IsZero() && !nb.Before(na) {
		errs = append(errs, fmt.Errorf("not_before must be before not_after"))
	}
	return errs
}

func isLoopbackAddr(addr string) bool {
	if addr == "" {
		return true
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
