package app

import (
	"context"
	"runtime"
	"time"

	"cronhost/internal/task/job"
	logx "cronhost/pkg/logx"
)

// Built-in job kinds.
const (
	KindHeartbeat    = "heartbeat"
	KindRuntimeStats = "runtime-stats"
)

// KindBuilder builds a new, unnamed job. The host sets its name and schedule
// from config before adding it.
type KindBuilder func(log logx.Logger) job.Configurable

func builtinKinds() map[string]KindBuilder {
	return map[string]KindBuilder{
		KindHeartbeat:    heartbeat,
		KindRuntimeStats: runtimeStats,
	}
}

func heartbeat(log logx.Logger) job.Configurable {
	started := time.Now()
	f := job.NewFunc("", "", nil)
	f.Run = func(context.Context) error {
		log.Info("heartbeat",
			logx.String("job", f.Name()),
			logx.Duration("uptime", time.Since(started).Round(time.Second)),
		)
		return nil
	}
	return f
}

func runtimeStats(log logx.Logger) job.Configurable {
	f := job.NewFunc("", "", nil)
	f.Run = func(context.Context) error {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		log.Info("runtime stats",
			logx.String("job", f.Name()),
			logx.Int("goroutines", runtime.NumGoroutine()),
			logx.Uint64("heap_alloc", ms.HeapAlloc),
			logx.Uint64("heap_objects", ms.HeapObjects),
			logx.Uint64("num_gc", uint64(ms.NumGC)),
		)
		return nil
	}
	return f
}
