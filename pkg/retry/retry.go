// Package retry runs API calls under a retry policy and provides the
// one-shot fallback used when a richer request shape is rejected.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy controls how often and how patiently a call is repeated.
type Policy struct {
	MaxAttempts int           // 0 means unlimited
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	Jitter      float64 // 0-1
}

// DefaultPolicy makes a single attempt. The dashboard surfaces failures to
// the user instead of retrying them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 1,
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// WithAttempts returns a copy of p with MaxAttempts set to n (minimum 1).
func (p Policy) WithAttempts(n int) Policy {
	if n < 1 {
		n = 1
	}
	p.MaxAttempts = n
	return p
}

// backoff returns the wait before the attempt following attempt n.
func (p Policy) backoff(n int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	wait := float64(p.InitialWait) * math.Pow(mult, float64(n-1))
	if p.MaxWait > 0 && wait > float64(p.MaxWait) {
		wait = float64(p.MaxWait)
	}
	if p.Jitter > 0 {
		wait += wait * p.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(wait)
}

// TransientError marks an error as worth another attempt.
type TransientError struct {
	Err error
}

func (e TransientError) Error() string {
	return e.Err.Error()
}

func (e TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err so that Do retries it. nil stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return TransientError{Err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t TransientError
	return errors.As(err, &t)
}

// Do calls fn until it succeeds, returns a non-transient error, the policy
// runs out of attempts, or ctx is done.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; p.MaxAttempts == 0 || attempt <= p.MaxAttempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if p.MaxAttempts != 0 && attempt == p.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}

	return zero, lastErr
}

// Fallback runs primary and, if it fails, runs fallback exactly once.
// The fallback's outcome is final. The returned flag reports whether the
// fallback ran. When both fail, both errors are joined.
func Fallback[T any](ctx context.Context, primary, fallback func(context.Context) (T, error)) (T, bool, error) {
	v, err := primary(ctx)
	if err == nil {
		return v, false, nil
	}
	if ctx.Err() != nil {
		return v, false, err
	}

	v, ferr := fallback(ctx)
	if ferr != nil {
		return v, true, errors.Join(ferr, err)
	}
	return v, true, nil
}
