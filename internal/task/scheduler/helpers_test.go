package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cronhost/internal/task/job"
	logx "cronhost/pkg/logx"
)

// logSink captures JSON log lines written by concurrent goroutines.
type logSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *logSink) messages() []string {
	s.mu.Lock()
	raw := s.buf.String()
	s.mu.Unlock()

	var out []string
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		var m map[string]any
		if json.Unmarshal([]byte(line), &m) != nil {
			continue
		}
		if msg, ok := m["message"].(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (s *logSink) has(substr string) bool {
	for _, m := range s.messages() {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func (s *logSink) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool { return s.has(substr) }, 3*time.Second, 5*time.Millisecond,
		"log %q not seen; got %q", substr, s.messages())
}

// stubJob runs once per queued due time; Execute consumes the head.
type stubJob struct {
	name string
	run  func(ctx context.Context) error

	mu  sync.Mutex
	due []time.Time
}

func newStub(name string, run func(ctx context.Context) error, due ...time.Time) *stubJob {
	return &stubJob{name: name, run: run, due: due}
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) NextDueTime() (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.due) == 0 {
		return time.Time{}, false
	}
	return j.due[0], true
}

func (j *stubJob) Execute(ctx context.Context) error {
	j.mu.Lock()
	if len(j.due) > 0 {
		j.due = j.due[1:]
	}
	j.mu.Unlock()
	if j.run == nil {
		return nil
	}
	return j.run(ctx)
}

func later() time.Time { return time.Now().Add(time.Hour) }

func newTestService(t *testing.T, cfg Config) (*Service, *logSink) {
	t.Helper()
	sink := &logSink{}
	svc := New(cfg, logx.NewJSON(sink, "trace"))
	svc.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})
	return svc, sink
}

func names(jobs []job.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Name())
	}
	return out
}
