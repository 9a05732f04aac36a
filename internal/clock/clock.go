// Package clock provides an injectable time source so that polling loops
// can be driven deterministically in tests.
//
// Production code holds a Clock (usually Real()) instead of calling
// time.Now or time.After directly. Tests use Fake() and move time with
// Advance, synchronising with the code under test through WaitForTimers.
package clock

import (
	"context"
	"time"
)

// Clock abstracts the two time operations the exporter needs.
// Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel receives immediately.
	After(d time.Duration) <-chan time.Time
}

// Sleep suspends the caller for d or until ctx is done, whichever comes
// first. It returns ctx.Err() when the context wins.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
