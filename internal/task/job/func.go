package job

import (
	"context"
	"time"
)

// Func is a cron-scheduled job backed by a closure.
type Func struct {
	CronSchedule

	JobName string
	Run     func(ctx context.Context) error
}

// Option configures the schedule of a Func.
type Option func(*CronSchedule)

// WithSeconds selects the 6-field (true) or 5-field (false) layout.
func WithSeconds(enabled bool) Option { return func(c *CronSchedule) { c.UseSeconds = enabled } }

// WithWindow restricts honored occurrences to [notBefore, notAfter).
// Zero values leave the corresponding bound open.
func WithWindow(notBefore, notAfter time.Time) Option {
	return func(c *CronSchedule) {
		c.NotBefore = notBefore
		c.NotAfter = notAfter
	}
}

// WithLocation sets the evaluation time zone.
func WithLocation(loc *time.Location) Option { return func(c *CronSchedule) { c.Location = loc } }

// WithClock overrides the clock used to evaluate the schedule.
func WithClock(now func() time.Time) Option { return func(c *CronSchedule) { c.Now = now } }

// NewFunc builds a Func. The 6-field layout is the default.
func NewFunc(name, expression string, run func(ctx context.Context) error, opts ...Option) *Func {
	f := &Func{JobName: name, Run: run}
	f.Expression = expression
	f.UseSeconds = true
	for _, o := range opts {
		if o != nil {
			o(&f.CronSchedule)
		}
	}
	return f
}

func (f *Func) Name() string { return f.JobName }

func (f *Func) SetName(name string) { f.JobName = name }

var _ Configurable = (*Func)(nil)

func (f *Func) Execute(ctx context.Context) error {
	if f.Run == nil {
		return nil
	}
	return f.Run(ctx)
}
