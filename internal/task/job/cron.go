package job

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"cronhost/internal/task/cronexpr"
)

// CronSchedule derives a job's due time from a cron expression.
//
// Embed it in a job type to get NextDueTime. The computed occurrence is
// cached until it falls behind the clock, so polling is cheap. Occurrences
// outside [NotBefore, NotAfter) are reported as "no occurrence".
//
// Configure the exported fields before the job is handed to the scheduler.
type CronSchedule struct {
	Expression string
	// UseSeconds selects the 6-field layout with a leading seconds column.
	UseSeconds bool
	// NotBefore is the earliest honored occurrence (zero = now).
	NotBefore time.Time
	// NotAfter is the exclusive upper bound (zero = unbounded).
	NotAfter time.Time
	// Location is the evaluation time zone (nil = time.Local).
	Location *time.Location
	// Now is the clock (nil = time.Now).
	Now func() time.Time
	// Evaluator (nil = cronexpr.Default).
	Evaluator cronexpr.Evaluator

	mu      sync.Mutex
	next    time.Time
	hasNext bool
	err     error
}

func (c *CronSchedule) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *CronSchedule) evaluator() cronexpr.Evaluator {
	if c.Evaluator != nil {
		return c.Evaluator
	}
	return cronexpr.Default
}

// NextDueTime returns the cached occurrence while it is not in the past,
// otherwise computes the first occurrence at or after now.
func (c *CronSchedule) NextDueTime() (time.Time, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasNext && !c.next.Before(now) {
		return c.next, true
	}
	c.hasNext = false
	c.next = time.Time{}

	expr := strings.TrimSpace(c.Expression)
	if expr == "" {
		return time.Time{}, false
	}

	next, ok, err := c.evaluator().Next(expr, c.UseSeconds, now, c.Location)
	c.err = err
	if err != nil || !ok {
		return time.Time{}, false
	}

	notBefore := c.NotBefore
	if notBefore.IsZero() {
		notBefore = now
	}
	if next.Before(notBefore) {
		return time.Time{}, false
	}
	if !c.NotAfter.IsZero() && !next.Before(c.NotAfter) {
		return time.Time{}, false
	}

	c.next = next
	c.hasNext = true
	return next, true
}

// ScheduleErr returns the evaluation error of the last recomputation, if any.
// A non-nil value means the expression is malformed.
func (c *CronSchedule) ScheduleErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ValidateExpression checks expr against the field layout selected by UseSeconds.
func (c *CronSchedule) ValidateExpression(expr string) error {
	if err := c.evaluator().Validate(expr, c.UseSeconds); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScheduleExpression, err)
	}
	return nil
}

// TryValidateExpression is ValidateExpression as a predicate; blank is invalid.
func (c *CronSchedule) TryValidateExpression(expr string) bool {
	if strings.TrimSpace(expr) == "" {
		return false
	}
	return c.ValidateExpression(expr) == nil
}

// Schedule returns c. Jobs embedding CronSchedule expose it through promotion.
func (c *CronSchedule) Schedule() *CronSchedule { return c }
