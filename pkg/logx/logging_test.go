package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONWritesFieldsAndRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSON(&buf, "info").With(String("comp", "test"))

	log.Debug("hidden")
	log.Info("visible", String("job", "a"), Err(errors.New("boom")))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var m map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &m))
	assert.Equal(t, "visible", m["message"])
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "test", m["comp"])
	assert.Equal(t, "a", m["job"])
	assert.Equal(t, "boom", m["err"])
	assert.Contains(t, m["caller"], "logging_test.go")
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var log Logger
	require.True(t, log.IsZero())
	log.Error("nothing happens")
	require.False(t, Nop().IsZero())
}

func TestValidLevel(t *testing.T) {
	for _, lvl := range []string{"", "trace", "DEBUG", "Information", "warning", "error"} {
		assert.True(t, ValidLevel(lvl), lvl)
	}
	for _, lvl := range []string{"loud", "fatal", "disabled", "-4"} {
		assert.False(t, ValidLevel(lvl), lvl)
	}
}

func TestServiceLoggerFollowsApply(t *testing.T) {
	dir := t.TempDir()
	first, second := filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: first}}, nil)
	t.Cleanup(func() { _ = svc.Close() })
	jobLog := log.With(String("job", "nightly"))

	jobLog.Info("before")
	svc.Apply(Config{Level: "warn", File: FileConfig{Enabled: true, Path: second}})
	jobLog.Info("dropped")
	jobLog.Warn("after")

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(a), "before")
	assert.NotContains(t, string(b), "dropped")
	assert.Contains(t, string(b), "after")
	assert.Contains(t, string(b), `"job":"nightly"`)
}

func TestServiceForwardsAlertsAboveMinLevel(t *testing.T) {
	got := make(chan Alert, 4)
	sink := AlertSinkFunc(func(ctx context.Context, a Alert) error {
		got <- a
		return nil
	})

	path := filepath.Join(t.TempDir(), "host.log")
	svc, log := New(Config{
		Level: "trace",
		File:  FileConfig{Enabled: true, Path: path},
		Alert: AlertConfig{Enabled: true, MinLevel: "error", RatePerSec: 10},
	}, sink)
	t.Cleanup(func() { _ = svc.Close() })

	log.Warn("below threshold")
	log.Error("nightly-report failed unexpectedly", String("job", "nightly-report"))

	select {
	case a := <-got:
		assert.Equal(t, "error", a.Level)
		assert.Equal(t, "nightly-report failed unexpectedly", a.Message)
		assert.Equal(t, "nightly-report", a.Fields["job"])
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not delivered")
	}

	select {
	case a := <-got:
		t.Fatalf("unexpected extra alert: %+v", a)
	case <-time.After(100 * time.Millisecond):
	}

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "below threshold")
}

func TestDecodeAlertRejectsEmpty(t *testing.T) {
	_, ok := decodeAlert([]byte("   "))
	assert.False(t, ok)

	a, ok := decodeAlert([]byte("not json"))
	require.True(t, ok)
	assert.Equal(t, "not json", a.Message)
}
