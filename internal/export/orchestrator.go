package export

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/clock"
)

// Phase is the orchestrator state.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseSubmitted
	PhasePolling
	PhaseRestarting
	PhaseSucceeded
	PhaseFailed
	PhaseStuckExhausted
	PhaseTimedOut
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseSubmitted:
		return "submitted"
	case PhasePolling:
		return "polling"
	case PhaseRestarting:
		return "restarting"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	case PhaseStuckExhausted:
		return "stuck_exhausted"
	case PhaseTimedOut:
		return "timed_out"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the loop stops in p.
func (p Phase) Terminal() bool { return p >= PhaseSucceeded }

// Orchestrator drives submit → poll → (restart) → download for one export
// at a time per Run call. A single Orchestrator may serve concurrent Run
// calls; each call owns its own state.
type Orchestrator struct {
	submitter Submitter
	poller    Poller
	resolver  Resolver
	clock     clock.Clock
	observer  Observer
	tracer    trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the real clock.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithObserver sets the event side channel.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observer = obs }
}

func New(s Submitter, p Poller, r Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		submitter: s,
		poller:    p,
		resolver:  r,
		clock:     clock.Real(),
		observer:  nopObserver,
		tracer:    otel.Tracer("vision_report/export"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one export and returns its payload, or an error matching
// one of the package sentinels.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Policy.Validate(); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "export.run", trace.WithAttributes(
		attribute.String("export.name", req.Name),
		attribute.String("export.endpoint", req.Endpoint),
	))
	defer span.End()

	r := &run{o: o, req: req, backoff: NewBackoff(req.Policy)}
	for !r.phase.Terminal() {
		r.phase = r.step(ctx)
	}

	var result *Result
	if r.phase == PhaseSucceeded {
		result = r.download(ctx)
	}

	elapsed := o.clock.Now().Sub(r.started)
	o.observer.Observe(ctx, r.event(EventFinished, func(e *Event) {
		e.Elapsed = elapsed
		e.Err = r.err
	}))

	span.SetAttributes(
		attribute.String("export.outcome", Outcome(r.err)),
		attribute.Int("export.restarts", r.wm.Restarts),
		attribute.Int("export.polls", r.polls),
	)
	if r.err != nil {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
		return nil, r.err
	}

	result.Elapsed = elapsed
	return result, nil
}

// run is the state of one invocation.
type run struct {
	o   *Orchestrator
	req Request

	phase    Phase
	handle   Handle
	started  time.Time
	wm       Watermark
	backoff  *Backoff
	polls    int
	last     *StatusSnapshot
	location string
	err      error
}

func (r *run) step(ctx context.Context) Phase {
	switch r.phase {
	case PhaseNotStarted:
		r.started = r.o.clock.Now()
		r.wm = NewWatermark(r.started)
		return r.submit(ctx)
	case PhaseSubmitted:
		return PhasePolling
	case PhasePolling:
		return r.poll(ctx)
	case PhaseRestarting:
		r.wm.Restarts++
		r.backoff.Reset()
		r.o.observer.Observe(ctx, r.event(EventRestarting, func(e *Event) {
			e.Elapsed = r.o.clock.Now().Sub(r.started)
		}))
		return r.submit(ctx)
	default:
		return r.phase
	}
}

func (r *run) submit(ctx context.Context) Phase {
	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}

	h, err := r.o.submitter.Submit(ctx, r.req)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancel(ctx.Err())
		}
		if !errors.Is(err, ErrSubmission) {
			err = &SubmissionError{Endpoint: r.req.Endpoint, Err: err}
		}
		r.err = err
		return PhaseFailed
	}

	r.handle = h
	r.o.observer.Observe(ctx, r.event(EventSubmitted, nil))
	return PhaseSubmitted
}

func (r *run) poll(ctx context.Context) Phase {
	if err := ctx.Err(); err != nil {
		return r.cancel(err)
	}

	p := r.req.Policy
	if elapsed := r.o.clock.Now().Sub(r.started); elapsed > p.Deadline {
		r.err = &TimedOut{Elapsed: elapsed, Deadline: p.Deadline, Last: r.last}
		return PhaseTimedOut
	}

	snap, err := r.o.poller.Poll(ctx, r.handle)
	if err != nil {
		if ctx.Err() != nil {
			return r.cancel(ctx.Err())
		}
		if !errors.Is(err, ErrPoll) {
			err = &PollError{Handle: r.handle, Err: err}
		}
		r.err = err
		return PhaseFailed
	}
	r.polls++
	r.last = &snap

	now := r.o.clock.Now()
	stale := r.wm.Stale(now)
	var restart bool
	r.wm, restart = Detect(r.wm, snap, now, p.StuckThreshold)

	r.o.observer.Observe(ctx, r.event(EventPolled, func(e *Event) { e.Snapshot = &snap }))

	switch snap.State {
	case StateSucceeded:
		if snap.DownloadLocation == "" {
			r.err = &PollError{
				Handle: r.handle,
				Err:    errors.New("job succeeded without a download location: " + truncate(snap.Payload)),
			}
			return PhaseFailed
		}
		r.location = snap.DownloadLocation
		return PhaseSucceeded
	case StateFailed, StateCancelled:
		r.err = &RemoteFailure{Snapshot: snap}
		return PhaseFailed
	}

	if restart {
		if r.wm.Restarts >= p.MaxRestarts {
			r.err = &StuckExhausted{Restarts: r.wm.Restarts, Stale: stale, Last: snap}
			return PhaseStuckExhausted
		}
		return PhaseRestarting
	}

	delay := r.backoff.Next()
	r.o.observer.Observe(ctx, r.event(EventBackoff, func(e *Event) { e.Delay = delay }))
	if err := clock.Sleep(ctx, r.o.clock, delay); err != nil {
		return r.cancel(err)
	}
	return PhasePolling
}

func (r *run) download(ctx context.Context) *Result {
	r.o.observer.Observe(ctx, r.event(EventSucceeded, nil))

	data, err := r.o.resolver.Resolve(ctx, r.location)
	if err != nil {
		if ctx.Err() != nil {
			r.phase = r.cancel(ctx.Err())
			return nil
		}
		if !errors.Is(err, ErrDownload) {
			err = &DownloadError{URL: r.location, Err: err}
		}
		r.err = err
		r.phase = PhaseFailed
		return nil
	}

	return &Result{
		Data:      data,
		SourceURL: r.location,
		Restarts:  r.wm.Restarts,
		Polls:     r.polls,
	}
}

func (r *run) cancel(cause error) Phase {
	r.err = &Cancelled{Phase: r.phase, Err: cause}
	return PhaseCancelled
}

func (r *run) event(kind EventKind, fill func(*Event)) Event {
	e := Event{
		Kind:     kind,
		Export:   r.req.Name,
		Phase:    r.phase,
		Handle:   r.handle,
		Restarts: r.wm.Restarts,
		Polls:    r.polls,
	}
	if fill != nil {
		fill(&e)
	}
	return e
}
