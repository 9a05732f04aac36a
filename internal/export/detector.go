package export

import "time"

// Watermark is the loop-local memory of the last distinct observation.
type Watermark struct {
	State     State
	Progress  *float64
	ChangedAt time.Time
	Restarts  int

	// seen is false until the first snapshot after a start or restart,
	// so that snapshot always counts as a change.
	seen bool
}

// NewWatermark starts tracking at now with no observation yet.
func NewWatermark(now time.Time) Watermark {
	return Watermark{ChangedAt: now}
}

// Stale reports how long the watermark has been unchanged.
func (w Watermark) Stale(now time.Time) time.Duration {
	return now.Sub(w.ChangedAt)
}

// restarted clears the observation fields and keeps the restart count.
func (w Watermark) restarted(now time.Time) Watermark {
	return Watermark{ChangedAt: now, Restarts: w.Restarts}
}

// Detect folds snap into prev and decides whether the job is stuck.
//
// Only a job with no progress at all is ever restarted. A job reporting
// the same nonzero progress for a long time is treated as slow, not dead.
// TODO: revisit if the vendor starts leaving jobs hung at a fixed
// percentage; such jobs currently run until the deadline.
//
// When a restart is signalled the returned watermark is already reset,
// so a continuously stuck job signals once per threshold crossing.
func Detect(prev Watermark, snap StatusSnapshot, now time.Time, threshold time.Duration) (Watermark, bool) {
	next := prev
	changed := !prev.seen || prev.State != snap.State || !sameProgress(prev.Progress, snap.Progress)
	if changed {
		next.State = snap.State
		next.Progress = snap.Progress
		next.ChangedAt = now
		next.seen = true
	}

	if snap.State.Terminal() || changed {
		return next, false
	}

	if next.Stale(now) > threshold && snap.NoProgress() {
		return next.restarted(now), true
	}
	return next, false
}
