package export

import "time"

// Backoff is the additive poll delay: base, base+step, base+2*step, …
// capped at ceiling. It is deterministic so a fake clock can replay it.
type Backoff struct {
	base    time.Duration
	step    time.Duration
	ceiling time.Duration
	current time.Duration
}

func NewBackoff(p Policy) *Backoff {
	b := &Backoff{base: p.PollInterval, step: p.BackoffStep, ceiling: p.BackoffCeiling}
	b.Reset()
	return b
}

// Next returns the delay to sleep now and advances the schedule.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current = min(b.current+b.step, b.ceiling)
	return d
}

// Reset returns the schedule to the base interval.
func (b *Backoff) Reset() {
	b.current = min(b.base, b.ceiling)
}
