package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronhost/internal/config"
	"cronhost/internal/storage"
	"cronhost/internal/task/job"
	"cronhost/internal/task/scheduler"
	logx "cronhost/pkg/logx"
)

const baseYAML = `
logging:
  level: error
scheduler:
  timezone: UTC
  shutdown_timeout: 5s
system_jobs:
  - name: beat
    kind: heartbeat
    expression: "0 0 0 1 1 *"
jobs:
  - name: ticker
    kind: count
    expression: "* * * * * *"
`

type counter struct{ runs atomic.Int32 }

func (c *counter) kind(logx.Logger) job.Configurable {
	return job.NewFunc("", "", func(context.Context) error {
		c.runs.Add(1)
		return nil
	})
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, "cronhost.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func startApp(t *testing.T, path string, opts ...Option) *App {
	t.Helper()
	a, err := New(path, opts...)
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background(), StopAppStop) })
	return a
}

func jobNames(js []job.Job) []string {
	out := make([]string, 0, len(js))
	for _, j := range js {
		out = append(out, j.Name())
	}
	return out
}

func TestStartRunsConfiguredJobs(t *testing.T) {
	c := &counter{}
	a := startApp(t, writeConfig(t, t.TempDir(), baseYAML), WithKind("count", c.kind))

	require.Eventually(t, func() bool { return c.runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"ticker"}, jobNames(a.Manager().Jobs()))
	assert.Equal(t, []string{"beat"}, jobNames(a.Manager().SystemJobs()))

	assert.False(t, a.Manager().RemoveJob(context.Background(), "beat"), "system jobs stay")
	assert.NoError(t, a.Err())
}

func TestReloadReconcilesJobs(t *testing.T) {
	c := &counter{}
	dir := t.TempDir()
	path := writeConfig(t, dir, baseYAML)
	a := startApp(t, path, WithKind("count", c.kind))
	require.Equal(t, []string{"ticker"}, jobNames(a.Manager().Jobs()))

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	next := strings.Replace(baseYAML, "name: ticker", "name: tocker", 1)
	writeConfig(t, dir, next)

	require.Eventually(t, func() bool {
		names := jobNames(a.Manager().Jobs())
		return len(names) == 1 && names[0] == "tocker"
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, []string{"beat"}, jobNames(a.Manager().SystemJobs()))
}

func TestReloadRejectsUnknownKind(t *testing.T) {
	c := &counter{}
	dir := t.TempDir()
	a := startApp(t, writeConfig(t, dir, baseYAML), WithKind("count", c.kind))
	time.Sleep(100 * time.Millisecond)

	writeConfig(t, dir, strings.Replace(baseYAML, "kind: count", "kind: nope", 1))
	time.Sleep(600 * time.Millisecond)

	assert.Equal(t, []string{"ticker"}, jobNames(a.Manager().Jobs()))
	assert.Equal(t, "count", a.cfgm.Get().Jobs[0].Kind, "rejected config is not committed")
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(writeConfig(t, t.TempDir(), baseYAML))
	require.Error(t, err)
	assert.ErrorIs(t, err, job.ErrUnresolvedJobType)
	assert.Contains(t, err.Error(), "jobs[0]")
}

func TestJournalRecordsRuns(t *testing.T) {
	c := &counter{}
	dir := t.TempDir()
	body := baseYAML + `
journal:
  driver: file
  path: ` + filepath.Join(dir, "journal") + "\n"
	a, err := New(writeConfig(t, dir, body), WithKind("count", c.kind))
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))

	require.Eventually(t, func() bool { return c.runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	require.NoError(t, a.Stop(context.Background(), StopAppStop))
	require.NoError(t, a.Stop(context.Background(), StopAppStop), "second stop is a no-op")

	st, err := storage.Open(storage.Config{Driver: "file", Path: filepath.Join(dir, "journal")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	recs, err := st.Recent(context.Background(), "ticker", 0)
	require.NoError(t, err)
	types := map[string]bool{}
	for _, r := range recs {
		types[r.Type] = true
	}
	assert.True(t, types[scheduler.EventJobAdded])
	assert.True(t, types[scheduler.EventJobStarted])
	assert.True(t, types[scheduler.EventJobFinished])
}

func TestStopWithoutStart(t *testing.T) {
	c := &counter{}
	a, err := New(writeConfig(t, t.TempDir(), baseYAML), WithKind("count", c.kind))
	require.NoError(t, err)
	assert.NoError(t, a.Stop(context.Background(), StopAppStop))
	_ = a.logs.Close()
}

func TestConfigureJob(t *testing.T) {
	f := job.NewFunc("", "", nil)
	no := false
	configureJob(f, config.JobConfig{
		Name:       " nightly ",
		Kind:       "report",
		Expression: " 0 2 * * * ",
		UseSeconds: &no,
		NotBefore:  "2026-01-01T00:00:00Z",
		NotAfter:   "2027-01-01T00:00:00Z",
	}, time.UTC)

	assert.Equal(t, "nightly", f.Name())
	assert.Equal(t, "0 2 * * *", f.Expression)
	assert.False(t, f.UseSeconds)
	assert.Equal(t, time.UTC, f.Location)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.NotBefore.UTC())
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), f.NotAfter.UTC())
}

func TestMapJournal(t *testing.T) {
	_, enabled, err := mapJournal(&config.Config{})
	require.NoError(t, err)
	assert.False(t, enabled)

	sc, enabled, err := mapJournal(&config.Config{Journal: &config.JournalConfig{Driver: " SQLite ", Path: "j.db"}})
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, "sqlite", sc.Driver)
	assert.Equal(t, time.Second, sc.BusyTimeout)

	_, _, err = mapJournal(&config.Config{Journal: &config.JournalConfig{Driver: "sqlite", Path: "j.db", BusyTimeout: "soon"}})
	assert.Error(t, err)
}
