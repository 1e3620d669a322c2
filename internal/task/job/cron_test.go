package job

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock is a settable clock; tests move it between calls.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func everySecond(clock *fixedClock, opts ...Option) *Func {
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewFunc("every-second", "*/1 * * * * *", func(context.Context) error { return nil }, opts...)
}

func TestNextDueTimeBetweenRestrictions(t *testing.T) {
	start := time.Now().Truncate(time.Second)

	tests := []struct {
		second int
		valid  bool
	}{
		{0, false}, {1, false}, {2, false},
		{3, true}, {4, true},
		{5, false}, {6, false}, {7, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("now+%ds", tt.second), func(t *testing.T) {
			clock := &fixedClock{t: start}
			j := everySecond(clock, WithWindow(start.Add(3*time.Second), start.Add(5*time.Second)))

			clock.t = start.Add(time.Duration(tt.second) * time.Second)
			next, ok := j.NextDueTime()
			assert.Equal(t, tt.valid, ok, "next=%v", next)
			if ok {
				assert.False(t, next.Before(start.Add(3*time.Second)))
				assert.True(t, next.Before(start.Add(5*time.Second)))
			}
		})
	}
}

func TestNextDueTimeSingle(t *testing.T) {
	clock := &fixedClock{t: time.Now().Truncate(time.Second).Add(200 * time.Millisecond)}
	j := everySecond(clock)

	next, ok := j.NextDueTime()
	require.True(t, ok)
	assert.Equal(t, clock.t.Truncate(time.Second).Add(time.Second), next)
}

func TestNextDueTimeIsCachedUntilPassed(t *testing.T) {
	clock := &fixedClock{t: time.Now().Truncate(time.Second).Add(200 * time.Millisecond)}
	j := everySecond(clock)

	first, ok := j.NextDueTime()
	require.True(t, ok)
	again, ok := j.NextDueTime()
	require.True(t, ok)
	assert.Equal(t, first, again)

	clock.t = first.Add(time.Millisecond)
	second, ok := j.NextDueTime()
	require.True(t, ok)
	assert.Equal(t, first.Add(time.Second), second)
}

func TestNextDueTimeCachedValueEqualToNowIsKept(t *testing.T) {
	clock := &fixedClock{t: time.Now().Truncate(time.Second).Add(200 * time.Millisecond)}
	j := everySecond(clock)

	first, ok := j.NextDueTime()
	require.True(t, ok)

	clock.t = first
	again, ok := j.NextDueTime()
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestNextDueTimeNotAfterInPast(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	j := everySecond(clock, WithWindow(time.Time{}, clock.t.Add(-10*time.Second)))

	_, ok := j.NextDueTime()
	assert.False(t, ok)
}

func TestNextDueTimeNotBeforeInFuture(t *testing.T) {
	clock := &fixedClock{t: time.Now()}
	j := everySecond(clock, WithWindow(clock.t.Add(10*time.Second), time.Time{}))

	_, ok := j.NextDueTime()
	assert.False(t, ok)
}

func TestNextDueTimeEmptyExpression(t *testing.T) {
	j := NewFunc("empty", "  ", nil)

	_, ok := j.NextDueTime()
	assert.False(t, ok)
	assert.NoError(t, j.ScheduleErr())
}

func TestNextDueTimeMalformedExpressionDoesNotPanic(t *testing.T) {
	j := NewFunc("broken", "every tuesday", nil)

	_, ok := j.NextDueTime()
	assert.False(t, ok)
	assert.Error(t, j.ScheduleErr())
}

func TestNextDueTimeStandardLayout(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 5, 4, 8, 59, 10, 0, time.UTC)}
	j := NewFunc("hourly", "0 * * * *", nil, WithSeconds(false), WithClock(clock.Now), WithLocation(time.UTC))

	next, ok := j.NextDueTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), next)
}

func TestValidateExpression(t *testing.T) {
	withSeconds := NewFunc("v", "", nil)

	require.NoError(t, withSeconds.ValidateExpression("*/30 * * * * *"))
	err := withSeconds.ValidateExpression("*/30 * * * *")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidScheduleExpression))

	assert.True(t, withSeconds.TryValidateExpression("*/30 * * * * *"))
	assert.False(t, withSeconds.TryValidateExpression("*/30 * * * *"))
	assert.False(t, withSeconds.TryValidateExpression(""))

	standard := NewFunc("v", "", nil, WithSeconds(false))
	assert.True(t, standard.TryValidateExpression("*/30 * * * *"))
}

func TestSystemWrapsJob(t *testing.T) {
	j := NewFunc("sys", "* * * * * *", nil)
	sj := System(j)
	assert.Same(t, j, sj.Job())
	assert.Nil(t, SystemJob{}.Job())
}

func TestConfigureFuncAfterConstruction(t *testing.T) {
	clock := &fixedClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	var j Configurable = NewFunc("", "", nil, WithClock(clock.Now))

	j.SetName("nightly")
	sch := j.Schedule()
	sch.Expression = "0 30 10 * * *"
	sch.Location = time.UTC

	assert.Equal(t, "nightly", j.Name())
	next, ok := j.NextDueTime()
	require.True(t, ok)
	assert.Equal(t, clock.t.Add(30*time.Minute), next)
	require.NoError(t, j.Execute(context.Background()))
}
