package export

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels for errors.Is. Every error returned by Orchestrator.Run
// matches exactly one of them.
var (
	ErrSubmission     = errors.New("export: submission failed")
	ErrPoll           = errors.New("export: status poll failed")
	ErrRemoteFailure  = errors.New("export: remote job failed")
	ErrStuckExhausted = errors.New("export: job stuck, restarts exhausted")
	ErrTimedOut       = errors.New("export: deadline exceeded")
	ErrDownload       = errors.New("export: download failed")
	ErrCancelled      = errors.New("export: cancelled")
)

// SubmissionError reports a failed attempt to start an export.
type SubmissionError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("export: submit %s: %v", e.Endpoint, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("export: submit %s: HTTP %d: %s", e.Endpoint, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("export: submit %s failed", e.Endpoint)
	}
}

func (e *SubmissionError) Unwrap() error        { return e.Err }
func (e *SubmissionError) Is(target error) bool { return target == ErrSubmission }

// PollError reports a status request that could not be completed or
// decoded.
type PollError struct {
	Handle     Handle
	StatusCode int
	Body       string
	Err        error
}

func (e *PollError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export: poll %s: %v", e.Handle, e.Err)
	}
	return fmt.Sprintf("export: poll %s: HTTP %d: %s", e.Handle, e.StatusCode, e.Body)
}

func (e *PollError) Unwrap() error        { return e.Err }
func (e *PollError) Is(target error) bool { return target == ErrPoll }

// RemoteFailure reports a job that ended failed or cancelled on the
// vendor side. Snapshot is the status that ended it.
type RemoteFailure struct {
	Snapshot StatusSnapshot
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("export: remote job ended %s (status %q): %s",
		e.Snapshot.State, e.Snapshot.RawState, e.Snapshot.Payload)
}

func (e *RemoteFailure) Is(target error) bool { return target == ErrRemoteFailure }

// StuckExhausted reports that the circuit breaker tripped once more than
// the restart budget allows.
type StuckExhausted struct {
	Restarts int
	Stale    time.Duration
	Last     StatusSnapshot
}

func (e *StuckExhausted) Error() string {
	return fmt.Sprintf("export: job stuck in %q without progress for %s after %d restarts",
		e.Last.RawState, e.Stale.Round(time.Second), e.Restarts)
}

func (e *StuckExhausted) Is(target error) bool { return target == ErrStuckExhausted }

// TimedOut reports that the global deadline passed before a terminal
// status was seen. Last is nil when no poll completed.
type TimedOut struct {
	Elapsed  time.Duration
	Deadline time.Duration
	Last     *StatusSnapshot
}

func (e *TimedOut) Error() string {
	last := "none"
	if e.Last != nil {
		last = fmt.Sprintf("%q", e.Last.RawState)
	}
	return fmt.Sprintf("export: polling exceeded %s (elapsed %s, last status %s)",
		e.Deadline, e.Elapsed.Round(time.Second), last)
}

func (e *TimedOut) Is(target error) bool { return target == ErrTimedOut }

// DownloadError reports a failed payload fetch.
type DownloadError struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("export: download: %v", e.Err)
	}
	return fmt.Sprintf("export: download: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *DownloadError) Unwrap() error        { return e.Err }
func (e *DownloadError) Is(target error) bool { return target == ErrDownload }

// Cancelled reports that the caller stopped the invocation. It is not a
// failure of the export itself.
type Cancelled struct {
	Phase Phase
	Err   error
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("export: cancelled while %s: %v", e.Phase, e.Err)
}

func (e *Cancelled) Unwrap() error        { return e.Err }
func (e *Cancelled) Is(target error) bool { return target == ErrCancelled }

// truncate keeps error bodies readable.
func truncate(b []byte) string {
	const limit = 300
	if len(b) > limit {
		return string(b[:limit]) + "…"
	}
	return string(b)
}
