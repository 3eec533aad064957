// Package retry represents a bounded retry schedule as data so the completion
// poller can be tuned without touching the state machine.
package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy describes a bounded retry schedule. The zero Multiplier and Jitter
// give the baseline fixed-interval schedule; production deployments under load
// should set both.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	// Multiplier grows the interval after each attempt when > 1.
	Multiplier float64
	// Jitter adds a random offset in [0, Jitter) to every wait.
	Jitter time.Duration
}

// DefaultPolicy is the baseline schedule: 15 attempts 1.5s apart, a
// deterministic worst case of 22.5s before giving up.
func DefaultPolicy() Policy {
	return Policy{Interval: 1500 * time.Millisecond, MaxAttempts: 15}
}

// Wait returns the delay before the given 1-based attempt's next try.
func (p Policy) Wait(attempt int) time.Duration {
	d := p.Interval
	if p.Multiplier > 1 {
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * p.Multiplier)
		}
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// ErrContinue signals that the probed condition has not been met yet. It is a
// continuation signal internal to the loop, never surfaced to callers.
type errContinue struct{}

func (errContinue) Error() string { return "not ready yet" }

// Continue is returned by probe functions to request another attempt.
var Continue error = errContinue{}

// Exhausted reports that the attempt budget was spent without the condition
// being met.
type Exhausted struct {
	Attempts int
}

func (e *Exhausted) Error() string {
	return "retry budget exhausted"
}

// Run invokes probe up to MaxAttempts times, sleeping per the schedule between
// attempts. probe returns nil when the condition is met, Continue to keep
// waiting, or a terminal error. The sleeps are the loop's only suspension
// points; cancelling ctx releases them immediately.
func Run(ctx context.Context, p Policy, probe func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		err := probe(ctx, attempt)
		if err == nil {
			return nil
		}
		if err != Continue {
			return err
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(p.Wait(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return &Exhausted{Attempts: attempts}
}
