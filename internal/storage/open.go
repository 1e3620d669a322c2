package storage

import (
	"context"
	"fmt"
	"strings"

	logx "cronhost/pkg/logx"
)

// Store persists journal records.
type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first. An empty job
	// matches every job.
	Recent(ctx context.Context, job string, limit int) ([]Record, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if the journal is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}
