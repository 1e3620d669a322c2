package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Alert is a decoded log line forwarded to an AlertSink.
type Alert struct {
	Level   string
	Message string
	Fields  map[string]string
}

// AlertSink receives high-severity log lines (e.g. a pager or chat webhook).
// Alert is called from a single background goroutine.
type AlertSink interface {
	Alert(ctx context.Context, a Alert) error
}

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(ctx context.Context, a Alert) error

func (f AlertSinkFunc) Alert(ctx context.Context, a Alert) error { return f(ctx, a) }

// alerter rate-limits alert lines and delivers them from one goroutine.
type alerter struct {
	sink  AlertSink
	queue chan Alert

	mu       sync.Mutex
	limiter  *rate.Limiter
	minLevel zerolog.Level

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func newAlerter(sink AlertSink) *alerter {
	return &alerter{sink: sink, queue: make(chan Alert, 256), cancel: func() {}}
}

// configure resets the limiter and threshold and starts delivery the first
// time alerts are enabled.
func (a *alerter) configure(cfg AlertConfig) {
	rps := max(1, cfg.RatePerSec)
	a.mu.Lock()
	a.minLevel = parseLevel(cfg.MinLevel, zerolog.ErrorLevel)
	a.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	a.mu.Unlock()

	if !cfg.Enabled {
		return
	}
	a.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		a.mu.Lock()
		a.cancel = cancel
		a.mu.Unlock()
		a.wg.Add(1)
		go a.deliver(ctx)
	})
}

func (a *alerter) deliver(ctx context.Context) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case al := <-a.queue:
			if err := a.sink.Alert(ctx, al); err != nil {
				fmt.Fprintf(os.Stderr, "logx: alert delivery failed: %v\n", err)
			}
		}
	}
}

func (a *alerter) stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	cancel()
	a.wg.Wait()
}

// offer queues a line at or above the threshold. It never blocks logging.
func (a *alerter) offer(level zerolog.Level, p []byte) {
	a.mu.Lock()
	lim, floor := a.limiter, a.minLevel
	a.mu.Unlock()

	if lim == nil || level < floor || !lim.Allow() {
		return
	}
	al, ok := decodeAlert(p)
	if !ok {
		return
	}
	select {
	case a.queue <- al:
	default:
	}
}

type alertWriter struct{ a *alerter }

func (w alertWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w alertWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	w.a.offer(level, p)
	return len(p), nil
}

// decodeAlert is a best-effort decode of a zerolog JSON line.
func decodeAlert(p []byte) (Alert, bool) {
	var m map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(p), &m); err != nil {
		s := strings.TrimSpace(string(p))
		if s == "" {
			return Alert{}, false
		}
		return Alert{Message: truncate(s, 3500)}, true
	}

	a := Alert{Fields: map[string]string{}}
	a.Level, _ = m["level"].(string)
	a.Message, _ = m["message"].(string)
	for k, v := range m {
		switch k {
		case "time", "level", "message":
			continue
		case "stack":
			a.Fields[k] = truncate(fmt.Sprint(v), 900)
		default:
			a.Fields[k] = truncate(fmt.Sprint(v), 600)
		}
	}
	return a, a.Message != ""
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
