package export

import (
	"fmt"
	"net/http"
	"time"
)

// Policy holds every tunable of the poll loop. The loop body reads all
// of its limits from here.
type Policy struct {
	// PollInterval is the first backoff delay and the value it resets to
	// after a restart.
	PollInterval time.Duration

	// Deadline bounds the whole invocation, measured from the first
	// submission. Restarts do not extend it.
	Deadline time.Duration

	// MaxRestarts is how many times a stuck job may be resubmitted.
	MaxRestarts int

	// StuckThreshold is how long status and progress may stay unchanged,
	// with no progress reported, before the job counts as stuck.
	StuckThreshold time.Duration

	// BackoffStep is added to the delay after every non-restart poll.
	BackoffStep time.Duration

	// BackoffCeiling caps the delay.
	BackoffCeiling time.Duration
}

// DefaultPolicy mirrors the schedule the vulnerability export has always
// used: 20s polls growing by 5s up to a minute, a 10 minute budget, and
// two restarts after 5 minutes without a sign of life.
func DefaultPolicy() Policy {
	return Policy{
		PollInterval:   20 * time.Second,
		Deadline:       10 * time.Minute,
		MaxRestarts:    2,
		StuckThreshold: 5 * time.Minute,
		BackoffStep:    5 * time.Second,
		BackoffCeiling: 60 * time.Second,
	}
}

// Validate rejects policies the loop cannot run with.
func (p Policy) Validate() error {
	switch {
	case p.PollInterval <= 0:
		return fmt.Errorf("export: poll interval must be positive")
	case p.Deadline <= 0:
		return fmt.Errorf("export: deadline must be positive")
	case p.MaxRestarts < 0:
		return fmt.Errorf("export: max restarts must not be negative")
	case p.StuckThreshold <= 0:
		return fmt.Errorf("export: stuck threshold must be positive")
	case p.BackoffStep < 0:
		return fmt.Errorf("export: backoff step must not be negative")
	case p.BackoffCeiling < p.PollInterval:
		return fmt.Errorf("export: backoff ceiling %s is below poll interval %s", p.BackoffCeiling, p.PollInterval)
	}
	return nil
}

// Request describes one export. It is never mutated by the orchestrator.
type Request struct {
	// Name labels events, spans and errors (e.g. "vulnerabilities").
	Name string

	Endpoint string
	Header   http.Header
	Body     []byte
	Policy   Policy
}

// Handle is the opaque reference returned by a submission, normally the
// Operation-Location URL.
type Handle string

// Result is the successful outcome of an invocation.
type Result struct {
	Data      []byte
	SourceURL string
	Restarts  int
	Polls     int
	Elapsed   time.Duration
}
