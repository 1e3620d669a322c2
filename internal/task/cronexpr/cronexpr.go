package cronexpr

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression is wrapped by every parse failure.
var ErrInvalidExpression = errors.New("invalid cron expression")

// Evaluator computes occurrences of cron expressions.
type Evaluator interface {
	// Next returns the first occurrence at or after from, evaluated in loc.
	// ok is false when the expression has no further occurrence.
	Next(expr string, withSeconds bool, from time.Time, loc *time.Location) (next time.Time, ok bool, err error)
	// Validate reports whether expr parses for the given field layout.
	Validate(expr string, withSeconds bool) error
}

var (
	// Standard 5-field layout: minute hour dom month dow (+ @descriptors).
	standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	// 6-field layout with a leading seconds column.
	secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Robfig is the default Evaluator backed by github.com/robfig/cron/v3.
type Robfig struct{}

// Default is the process-wide evaluator used when none is injected.
var Default Evaluator = Robfig{}

func parserFor(withSeconds bool) cron.Parser {
	if withSeconds {
		return secondsParser
	}
	return standardParser
}

func parse(expr string, withSeconds bool) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}
	sched, err := parserFor(withSeconds).Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidExpression, expr, err)
	}
	return sched, nil
}

func (Robfig) Validate(expr string, withSeconds bool) error {
	_, err := parse(expr, withSeconds)
	return err
}

func (Robfig) Next(expr string, withSeconds bool, from time.Time, loc *time.Location) (time.Time, bool, error) {
	sched, err := parse(expr, withSeconds)
	if err != nil {
		return time.Time{}, false, err
	}
	if loc == nil {
		loc = time.Local
	}
	// robfig's Next is strictly after its argument; stepping back one
	// nanosecond makes an occurrence exactly at from eligible.
	next := sched.Next(from.In(loc).Add(-time.Nanosecond))
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next, true, nil
}
