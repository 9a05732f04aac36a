package export

import (
	"context"
	"log/slog"
	"time"
)

// EventKind names a step of the export lifecycle.
type EventKind string

const (
	EventSubmitted  EventKind = "submitted"
	EventPolled     EventKind = "polled"
	EventBackoff    EventKind = "backoff"
	EventRestarting EventKind = "restarting"
	EventSucceeded  EventKind = "succeeded"
	EventFinished   EventKind = "finished"
)

// Event is emitted by the orchestrator on every transition worth
// recording. Snapshot is set for polled events; Err for finished events
// that did not succeed.
type Event struct {
	Kind     EventKind
	Export   string
	Phase    Phase
	Handle   Handle
	Snapshot *StatusSnapshot
	Restarts int
	Polls    int
	Delay    time.Duration
	Elapsed  time.Duration
	Err      error
}

// Observer receives events synchronously from the loop. Implementations
// must not block for long.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) { f(ctx, e) }

// Observers fans events out in order.
func Observers(list ...Observer) Observer {
	return ObserverFunc(func(ctx context.Context, e Event) {
		for _, o := range list {
			if o != nil {
				o.Observe(ctx, e)
			}
		}
	})
}

var nopObserver = ObserverFunc(func(context.Context, Event) {})

// LogObserver writes every event to log.
func LogObserver(log *slog.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, e Event) {
		attrs := []slog.Attr{
			slog.String("export", e.Export),
			slog.String("phase", e.Phase.String()),
			slog.Int("restarts", e.Restarts),
		}
		if e.Handle != "" {
			attrs = append(attrs, slog.String("handle", string(e.Handle)))
		}

		switch e.Kind {
		case EventPolled:
			attrs = append(attrs,
				slog.String("status", e.Snapshot.RawState),
				slog.String("state", string(e.Snapshot.State)),
				slog.Int("poll", e.Polls),
			)
			if e.Snapshot.Progress != nil {
				attrs = append(attrs, slog.Float64("progress", *e.Snapshot.Progress))
			}
			log.LogAttrs(ctx, slog.LevelInfo, "vision_report.export.polled", attrs...)
		case EventBackoff:
			log.LogAttrs(ctx, slog.LevelDebug, "vision_report.export.backoff",
				append(attrs, slog.Duration("delay", e.Delay))...)
		case EventRestarting:
			log.LogAttrs(ctx, slog.LevelWarn, "vision_report.export.restarting",
				append(attrs, slog.Duration("elapsed", e.Elapsed))...)
		case EventFinished:
			attrs = append(attrs, slog.Duration("elapsed", e.Elapsed), slog.Int("polls", e.Polls))
			if e.Err != nil {
				log.LogAttrs(ctx, slog.LevelError, "vision_report.export.failed",
					append(attrs, slog.String("error", e.Err.Error()))...)
				return
			}
			log.LogAttrs(ctx, slog.LevelInfo, "vision_report.export.finished", attrs...)
		default:
			log.LogAttrs(ctx, slog.LevelInfo, "vision_report.export."+string(e.Kind), attrs...)
		}
	})
}
