package job

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reportJob struct {
	CronSchedule
	target string
}

func (r *reportJob) Name() string                  { return "report:" + r.target }
func (r *reportJob) Execute(context.Context) error { return nil }

type otherJob struct{}

func (otherJob) Name() string                   { return "other" }
func (otherJob) NextDueTime() (time.Time, bool) { return time.Time{}, false }
func (otherJob) Execute(context.Context) error  { return nil }

func TestRegistryResolvesFreshInstances(t *testing.T) {
	r := NewRegistry()
	Provide(r, func() *reportJob { return &reportJob{target: "daily"} })

	a, err := Resolve[*reportJob](r)
	require.NoError(t, err)
	b, err := Resolve[*reportJob](r)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, "report:daily", a.Name())
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := Resolve[otherJob](r)
	require.ErrorIs(t, err, ErrUnresolvedJobType)

	_, err = r.Resolve(reflect.TypeFor[*reportJob]())
	require.ErrorIs(t, err, ErrUnresolvedJobType)

	_, err = Resolve[otherJob](nil)
	require.ErrorIs(t, err, ErrUnresolvedJobType)
}

func TestRegistryKinds(t *testing.T) {
	r := NewRegistry()
	r.ProvideKind(" Heartbeat ", func() Job { return NewFunc("hb", "* * * * * *", nil) })
	r.ProvideKind("noop", func() Job { return otherJob{} })
	r.ProvideKind("", func() Job { return otherJob{} })

	assert.Equal(t, []string{"heartbeat", "noop"}, r.Kinds())

	j, err := r.ResolveKind("HEARTBEAT")
	require.NoError(t, err)
	assert.Equal(t, "hb", j.Name())

	_, err = r.ResolveKind("missing")
	require.ErrorIs(t, err, ErrUnresolvedJobType)
}

func TestRegistryNilConstructorResult(t *testing.T) {
	r := NewRegistry()
	r.ProvideKind("nil", func() Job { return nil })

	_, err := r.ResolveKind("nil")
	require.ErrorIs(t, err, ErrUnresolvedJobType)
}
