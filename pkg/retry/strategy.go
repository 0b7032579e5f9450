package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Strategy is a function that determines whether or not an action should be
// retried. Strategies are allowed to delay or cause other side effects.
type Strategy func(ctx context.Context, attempts uint, err error) bool

// Delay provides the amount of time to wait before the next attempt.
// attempts starts at 1.
type Delay func(attempts uint) time.Duration

// Constant returns a delay that is always interval.
func Constant(interval time.Duration) Delay {
	return func(uint) time.Duration {
		return interval
	}
}

// BinaryExponential returns a delay of base * 2^(attempts - 1).
func BinaryExponential(base time.Duration) Delay {
	return func(attempts uint) time.Duration {
		if delay := base * time.Duration(math.Pow(2, float64(attempts-1))); delay >= 0 {
			return delay
		}
		return math.MaxInt64
	}
}

// Limit returns a strategy that limits the total number of attempts.
// maxAttempts should be >= 1, since the action is evaluated first.
func Limit(maxAttempts uint) Strategy {
	return func(_ context.Context, attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors returns a strategy that specifies which errors can be retried.
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	}
}

// BackoffWithJitter returns a strategy that sleeps before the next attempt.
// The delay is capped at maxBackoff before jitter, a fraction of the capped
// delay, is applied in either direction. The strategy stops retrying if ctx
// is done while sleeping.
func BackoffWithJitter(delay Delay, maxBackoff time.Duration, jitter float64) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		capped := time.Duration(math.Min(float64(maxBackoff), float64(delay(attempts))))
		withJitter := time.Duration(float64(capped) * (1 + (rand.Float64()*jitter*2 - jitter)))
		return sleeperImpl.Sleep(ctx, withJitter)
	}
}

type sleeper interface {
	// Sleep returns false if ctx was done before d elapsed.
	Sleep(ctx context.Context, d time.Duration) bool
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var sleeperImpl sleeper = realSleeper{}
