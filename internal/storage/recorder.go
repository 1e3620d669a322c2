package storage

import (
	"context"
	"time"

	"cronhost/internal/eventbus"
	"cronhost/internal/task/scheduler"
	logx "cronhost/pkg/logx"
)

// Recorder writes scheduler lifecycle events from a bus into a Store.
// It subscribes when built so nothing published before Run is missed.
type Recorder struct {
	store Store
	log   logx.Logger

	events <-chan eventbus.Event
	unsub  func()
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Recorder{store: store, log: log, unsub: func() {}}
	if store != nil && bus != nil {
		r.events, r.unsub = bus.Subscribe(256)
	}
	return r
}

// Run consumes events until ctx ends. Job events and log alerts are
// recorded, anything else is ignored; append failures are logged and skipped.
//
// The subscription outlives a Run that panics, so a restarted Run resumes on
// the same channel. It is released only once ctx ends.
func (r *Recorder) Run(ctx context.Context) error {
	if r == nil || r.events == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			r.drain()
			r.unsub()
			return nil
		case e, ok := <-r.events:
			if !ok {
				r.log.Warn("journal subscription closed; recording stopped")
				return nil
			}
			r.write(ctx, e)
		}
	}
}

// drain writes the events already buffered when Run is asked to stop.
func (r *Recorder) drain() {
	for {
		select {
		case e, ok := <-r.events:
			if !ok {
				return
			}
			r.write(context.Background(), e)
		default:
			return
		}
	}
}

func (r *Recorder) write(ctx context.Context, e eventbus.Event) {
	rec, ok := recordOf(e)
	if !ok {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.store.Append(wctx, rec); err != nil {
		r.log.Warn("journal append failed", logx.String("job", rec.Job), logx.String("type", rec.Type), logx.Err(err))
	}
}

func recordOf(e eventbus.Event) (Record, bool) {
	if a, ok := e.Data.(logx.Alert); ok {
		return Record{
			At:     e.Time,
			Type:   e.Type,
			Job:    a.Fields["job"],
			RunID:  a.Fields["run_id"],
			Reason: a.Level,
			Error:  a.Message,
		}, true
	}
	ev, ok := e.Data.(scheduler.JobEvent)
	if !ok {
		if p, isPtr := e.Data.(*scheduler.JobEvent); isPtr && p != nil {
			ev, ok = *p, true
		}
	}
	if !ok || ev.Name == "" {
		return Record{}, false
	}
	return Record{
		At:     e.Time,
		Type:   e.Type,
		Job:    ev.Name,
		RunID:  ev.RunID,
		System: ev.System,
		Reason: string(ev.Reason),
		Error:  ev.Err,
		TookMS: ev.Took.Milliseconds(),
	}, true
}
