package resilience

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const defaultBackoff = 25 * time.Millisecond

// Policy bounds a call to a backing store with a timeout, retries and a breaker.
// Errors matched by Expected are returned immediately and count as healthy calls.
type Policy struct {
	Breaker     *Breaker
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	Timeout     time.Duration
	Expected    func(error) bool
}

// Do runs fn under the policy. A nil policy runs fn once with no protection.
func Do[T any](ctx context.Context, p *Policy, fn func(context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	var zero T
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if p.Breaker != nil && !p.Breaker.Allow(ctx) {
			if lastErr != nil {
				return zero, errors.Join(ErrOpenCircuit, lastErr)
			}
			return zero, ErrOpenCircuit
		}
		v, err := callOnce(ctx, p.Timeout, fn)
		if err == nil || p.expected(err) {
			p.report(ctx, true)
			return v, err
		}
		p.report(ctx, false)
		lastErr = err
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(p.BaseBackoff, attempt, p.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, errors.Join(ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func callOnce[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

func (p *Policy) expected(err error) bool {
	return p.Expected != nil && p.Expected(err)
}

func (p *Policy) report(ctx context.Context, ok bool) {
	if p.Breaker != nil {
		p.Breaker.Report(ctx, ok)
	}
}

// Backoff returns the delay before retry number attempt: base doubled per prior attempt,
// spread by up to jitter (a fraction) in either direction.
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = defaultBackoff
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << (attempt - 1)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}
