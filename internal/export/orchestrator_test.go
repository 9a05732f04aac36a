package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ketvonryn/Trend-Micro-Vision-One---mensal/internal/clock"
)

var epoch = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

// autoClock fires every timer as soon as it is registered, moving fake
// time forward by the requested delay. Sleeps are recorded.
type autoClock struct {
	*clock.FakeClock
	mu     sync.Mutex
	sleeps []time.Duration
}

func newAutoClock() *autoClock {
	return &autoClock{FakeClock: clock.Fake(epoch)}
}

func (c *autoClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	ch := c.FakeClock.After(d)
	c.FakeClock.Advance(d)
	return ch
}

func (c *autoClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeSubmitter) Submit(_ context.Context, _ Request) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return Handle(fmt.Sprintf("https://api.example.test/operations/%d", s.calls)), nil
}

func (s *fakeSubmitter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scriptPoller answers each poll with next(n), n counting from 1.
type scriptPoller struct {
	mu      sync.Mutex
	calls   int
	handles []Handle
	next    func(n int) (StatusSnapshot, error)
}

func (p *scriptPoller) Poll(_ context.Context, h Handle) (StatusSnapshot, error) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.handles = append(p.handles, h)
	p.mu.Unlock()
	return p.next(n)
}

type fakeResolver struct {
	mu       sync.Mutex
	calls    int
	location string
	data     []byte
	err      error
}

func (r *fakeResolver) Resolve(_ context.Context, location string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.location = location
	return r.data, r.err
}

func running(progress *float64) StatusSnapshot {
	return StatusSnapshot{State: StateRunning, RawState: "running", Progress: progress}
}

func pct(v float64) *float64 { return &v }

func succeeded(location string) StatusSnapshot {
	return StatusSnapshot{State: StateSucceeded, RawState: "succeeded", Progress: pct(100), DownloadLocation: location}
}

func testPolicy() Policy {
	return Policy{
		PollInterval:   20 * time.Second,
		Deadline:       time.Hour,
		MaxRestarts:    2,
		StuckThreshold: 5 * time.Minute,
		BackoffStep:    5 * time.Second,
		BackoffCeiling: 60 * time.Second,
	}
}

func testRequest(p Policy) Request {
	return Request{Name: "vulnerabilities", Endpoint: "https://api.example.test/export", Policy: p}
}

func countOf(list []time.Duration, d time.Duration) int {
	n := 0
	for _, v := range list {
		if v == d {
			n++
		}
	}
	return n
}

func TestRunSucceedsAfterProgress(t *testing.T) {
	clk := newAutoClock()
	sub := &fakeSubmitter{}
	res := &fakeResolver{data: []byte("PK\x03\x04payload")}
	poll := &scriptPoller{next: func(n int) (StatusSnapshot, error) {
		if n == 1 {
			return running(pct(10)), nil
		}
		return succeeded("https://bucket.example.test/x.zip?X-Amz-Signature=abc"), nil
	}}

	var kinds []EventKind
	obs := ObserverFunc(func(_ context.Context, e Event) { kinds = append(kinds, e.Kind) })

	result, err := New(sub, poll, res, WithClock(clk), WithObserver(obs)).Run(context.Background(), testRequest(testPolicy()))
	require.NoError(t, err)

	assert.Equal(t, res.data, result.Data)
	assert.Equal(t, "https://bucket.example.test/x.zip?X-Amz-Signature=abc", result.SourceURL)
	assert.Equal(t, 0, result.Restarts)
	assert.Equal(t, 2, result.Polls)
	assert.Equal(t, 20*time.Second, result.Elapsed)
	assert.Equal(t, 1, sub.Calls())
	assert.Equal(t, 1, res.calls)
	assert.Equal(t, []time.Duration{20 * time.Second}, clk.Sleeps())
	assert.Equal(t, []EventKind{
		EventSubmitted, EventPolled, EventBackoff, EventPolled, EventSucceeded, EventFinished,
	}, kinds)
}

func TestRunStuckExhaustsRestarts(t *testing.T) {
	clk := newAutoClock()
	sub := &fakeSubmitter{}
	res := &fakeResolver{}
	poll := &scriptPoller{next: func(int) (StatusSnapshot, error) { return running(nil), nil }}

	p := testPolicy()
	_, err := New(sub, poll, res, WithClock(clk)).Run(context.Background(), testRequest(p))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStuckExhausted)

	var stuck *StuckExhausted
	require.ErrorAs(t, err, &stuck)
	assert.Equal(t, p.MaxRestarts, stuck.Restarts)
	assert.Greater(t, stuck.Stale, p.StuckThreshold)
	assert.Equal(t, "running", stuck.Last.RawState)

	assert.Equal(t, p.MaxRestarts+1, sub.Calls())
	assert.Equal(t, 0, res.calls)

	// Each cycle starts again from the base interval.
	assert.Equal(t, p.MaxRestarts+1, countOf(clk.Sleeps(), p.PollInterval))

	// Every resubmission is polled under its own handle.
	assert.Equal(t, Handle("https://api.example.test/operations/1"), poll.handles[0])
	assert.Equal(t, Handle("https://api.example.test/operations/3"), poll.handles[len(poll.handles)-1])
}

func TestRunRemoteFailure(t *testing.T) {
	clk := newAutoClock()
	sub := &fakeSubmitter{}
	res := &fakeResolver{}
	poll := &scriptPoller{next: func(int) (StatusSnapshot, error) {
		return StatusSnapshot{State: StateFailed, RawState: "failed", Payload: []byte(`{"status":"failed"}`)}, nil
	}}

	_, err := New(sub, poll, res, WithClock(clk)).Run(context.Background(), testRequest(testPolicy()))
	assert.ErrorIs(t, err, ErrRemoteFailure)

	var rf *RemoteFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, StateFailed, rf.Snapshot.State)
	assert.Equal(t, 0, res.calls)
	assert.Empty(t, clk.Sleeps())
}

func TestRunRemoteCancelledIsRemoteFailure(t *testing.T) {
	poll := &scriptPoller{next: func(int) (StatusSnapshot, error) {
		return StatusSnapshot{State: StateCancelled, RawState: "canceled"}, nil
	}}

	_, err := New(&fakeSubmitter{}, poll, &fakeResolver{}, WithClock(newAutoClock())).
		Run(context.Background(), testRequest(testPolicy()))
	assert.ErrorIs(t, err, ErrRemoteFailure)
	assert.NotErrorIs(t, err, ErrCancelled)
}

func TestRunTimesOut(t *testing.T) {
	clk := newAutoClock()
	poll := &scriptPoller{next: func(n int) (StatusSnapshot, error) {
		return running(pct(float64(n))), nil
	}}

	p := testPolicy()
	p.Deadline = 2 * time.Minute
	_, err := New(&fakeSubmitter{}, poll, &fakeResolver{}, WithClock(clk)).Run(context.Background(), testRequest(p))
	assert.ErrorIs(t, err, ErrTimedOut)

	var to *TimedOut
	require.ErrorAs(t, err, &to)
	assert.Greater(t, to.Elapsed, p.Deadline)
	require.NotNil(t, to.Last)
	assert.Equal(t, StateRunning, to.Last.State)

	// 20+25+30+35 = 110s is within budget; the next wait crosses it.
	assert.Equal(t, 5, poll.calls)
}

func TestRunDeadlineSpansRestarts(t *testing.T) {
	clk := newAutoClock()
	sub := &fakeSubmitter{}
	poll := &scriptPoller{next: func(int) (StatusSnapshot, error) { return running(nil), nil }}

	p := testPolicy()
	p.Deadline = 7 * time.Minute
	_, err := New(sub, poll, &fakeResolver{}, WithClock(clk)).Run(context.Background(), testRequest(p))
	assert.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, 2, sub.Calls())
}

func TestRunCancelledDuringBackoff(t *testing.T) {
	clk := clock.Fake(epoch)
	poll := &scriptPoller{next: func(int) (StatusSnapshot, error) { return running(pct(10)), nil }}
	res := &fakeResolver{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := New(&fakeSubmitter{}, poll, res, WithClock(clk)).Run(ctx, testRequest(testPolicy()))
		done <- err
	}()

	clk.WaitForTimers(1)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
		var c *Cancelled
		require.ErrorAs(t, err, &c)
		assert.Equal(t, PhasePolling, c.Phase)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}
	assert.Equal(t, 0, res.calls)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	sub := &fakeSubmitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(sub, &scriptPoller{}, &fakeResolver{}, WithClock(newAutoClock())).Run(ctx, testRequest(testPolicy()))
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, sub.Calls())
}

func TestRunClassifiesCollaboratorErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name   string
		sub    *fakeSubmitter
		poll   func(int) (StatusSnapshot, error)
		res    *fakeResolver
		target error
		cause  error
	}{
		{
			name:   "submit transport error",
			sub:    &fakeSubmitter{err: boom},
			poll:   func(int) (StatusSnapshot, error) { return running(nil), nil },
			res:    &fakeResolver{},
			target: ErrSubmission,
			cause:  boom,
		},
		{
			name:   "poll transport error",
			sub:    &fakeSubmitter{},
			poll:   func(int) (StatusSnapshot, error) { return StatusSnapshot{}, boom },
			res:    &fakeResolver{},
			target: ErrPoll,
			cause:  boom,
		},
		{
			name:   "succeeded without location",
			sub:    &fakeSubmitter{},
			poll:   func(int) (StatusSnapshot, error) { return succeeded(""), nil },
			res:    &fakeResolver{},
			target: ErrPoll,
		},
		{
			name:   "download error",
			sub:    &fakeSubmitter{},
			poll:   func(int) (StatusSnapshot, error) { return succeeded("https://dl.example.test/a.zip"), nil },
			res:    &fakeResolver{err: boom},
			target: ErrDownload,
			cause:  boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.sub, &scriptPoller{next: tt.poll}, tt.res, WithClock(newAutoClock())).
				Run(context.Background(), testRequest(testPolicy()))
			assert.ErrorIs(t, err, tt.target)
			if tt.cause != nil {
				assert.ErrorIs(t, err, tt.cause)
			}
		})
	}
}

func TestRunRejectsInvalidPolicy(t *testing.T) {
	sub := &fakeSubmitter{}
	p := testPolicy()
	p.PollInterval = 0

	_, err := New(sub, &scriptPoller{}, &fakeResolver{}).Run(context.Background(), testRequest(p))
	assert.Error(t, err)
	assert.Equal(t, 0, sub.Calls())
}

func TestPhaseTerminal(t *testing.T) {
	for _, p := range []Phase{PhaseNotStarted, PhaseSubmitted, PhasePolling, PhaseRestarting} {
		assert.False(t, p.Terminal(), p.String())
	}
	for _, p := range []Phase{PhaseSucceeded, PhaseFailed, PhaseStuckExhausted, PhaseTimedOut, PhaseCancelled} {
		assert.True(t, p.Terminal(), p.String())
	}
}
