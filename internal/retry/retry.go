package retry

import (
	"context"
	"errors"
	"time"
)

// ErrOffline is recorded for attempts skipped by the online gate.
var ErrOffline = errors.New("offline, attempt skipped")

// Policy is an explicit retry schedule: how many attempts to make and the
// delays between them. The last backoff entry repeats when there are more
// attempts than entries; an empty schedule means immediate retries.
type Policy struct {
	MaxAttempts int
	Backoff     []time.Duration
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Backoff: []time.Duration{delay}}
}

// Schedule returns a policy whose attempt count is one more than the number
// of delays, so every delay separates two attempts.
func Schedule(delays ...time.Duration) Policy {
	return Policy{MaxAttempts: len(delays) + 1, Backoff: delays}
}

// Do runs fn until it succeeds or the policy is exhausted.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	return p.DoWithGate(ctx, nil, fn)
}

// DoWithGate is Do with a connectivity gate: when gate reports offline at
// the start of an attempt, the attempt slot is consumed but the backoff
// index does not advance, so coming back online resumes the schedule where
// it left off rather than at a grown delay.
func (p Policy) DoWithGate(ctx context.Context, gate func(context.Context) bool, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	backoffIdx := 0
	for attempt := 0; attempt < attempts; attempt++ {
		if gate != nil && !gate(ctx) {
			lastErr = ErrOffline
			if err := sleep(ctx, p.delay(backoffIdx)); err != nil {
				return err
			}
			continue
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if attempt < attempts-1 {
			if err := sleep(ctx, p.delay(backoffIdx)); err != nil {
				return err
			}
			backoffIdx++
		}
	}
	return lastErr
}

func (p Policy) delay(idx int) time.Duration {
	if len(p.Backoff) == 0 {
		return 0
	}
	if idx >= len(p.Backoff) {
		idx = len(p.Backoff) - 1
	}
	return p.Backoff[idx]
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
