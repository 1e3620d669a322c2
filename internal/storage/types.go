package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled      = errors.New("journal disabled")
	ErrClosed        = errors.New("journal closed")
	ErrUnknownDriver = errors.New("unknown journal driver")
)

// Config configures the journal.
//
// Driver values:
//   - "file": JSON Lines file
//   - "sqlite": SQLite database file
//
// An empty Driver or "none" disables the journal.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Retain is the number of records kept (0 = 10000).
	Retain int
}

const defaultRetain = 10000

func (c Config) retain() int {
	if c.Retain > 0 {
		return c.Retain
	}
	return defaultRetain
}

// Record is one journal line. Keep it compact and schema-stable.
type Record struct {
	At     time.Time `json:"at"`
	Type   string    `json:"type"`
	Job    string    `json:"job"`
	RunID  string    `json:"run_id,omitempty"`
	System bool      `json:"system,omitempty"`
	Reason string    `json:"reason,omitempty"`
	Error  string    `json:"err,omitempty"`
	TookMS int64     `json:"took_ms,omitempty"`
}
