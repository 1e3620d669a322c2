package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDuration reads the Go duration string at path. A blank value yields
// def. Negative values are rejected, as are values below floor when floor > 0.
func ParseDuration(path, raw string, def, floor time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	switch {
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	case floor > 0 && d < floor:
		return 0, fmt.Errorf("%s: %s is below the minimum of %s", path, d, floor)
	}
	return d, nil
}
