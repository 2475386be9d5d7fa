package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

// Policy describes bounded retries with exponential backoff
type Policy struct {
	MaxRetries   int           // Retries after the first attempt
	InitialDelay time.Duration // Wait before the second attempt
	Multiplier   float64       // Growth factor applied after each failure
	MaxDelay     time.Duration // Cap on a single wait; 0 means uncapped
	Jitter       float64       // Randomization factor in [0,1); 0 is deterministic

	// Timer overrides the wall-clock timer used between attempts
	Timer backoff.Timer
	// OnRetry is called before each wait with the failed attempt number
	OnRetry func(attempt int, err error, delay time.Duration)
	// Retryable overrides the default permanence check
	Retryable func(err error) bool
}

const uncappedDelay = 24 * time.Hour

// PolicyFrom builds a Policy from configuration and a provider's retry count
func PolicyFrom(cfg models.RetryConfig, maxRetries int) Policy {
	cfg = cfg.WithDefaults()
	return Policy{
		MaxRetries:   max(maxRetries, 0),
		InitialDelay: time.Duration(cfg.InitialDelayMs) * time.Millisecond,
		Multiplier:   cfg.Multiplier,
		MaxDelay:     time.Duration(cfg.MaxDelayMs) * time.Millisecond,
		Jitter:       cfg.Jitter,
	}
}

// RetryError aggregates the error of every failed attempt
type RetryError struct {
	errs []error
}

// Error returns the message of the last attempt's error
func (e *RetryError) Error() string {
	return e.Last().Error()
}

// Unwrap returns the last attempt's error
func (e *RetryError) Unwrap() error {
	return e.Last()
}

// Last returns the error of the final attempt
func (e *RetryError) Last() error {
	if len(e.errs) == 0 {
		return errors.New("retry failed")
	}
	return e.errs[len(e.errs)-1]
}

// Errors returns every attempt's error in order
func (e *RetryError) Errors() []error {
	out := make([]error, len(e.errs))
	copy(out, e.errs)
	return out
}

// Attempts returns how many attempts failed
func (e *RetryError) Attempts() int {
	return len(e.errs)
}

// Retry runs op up to MaxRetries+1 times, waiting between failures
func Retry[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	v, _, err := RetryN(ctx, p, op)
	return v, err
}

// RetryN is Retry that also reports how many attempts were made
func RetryN[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, int, error) {
	var (
		result   T
		attempts int
		errs     []error
	)

	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	operation := func() error {
		attempts++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}
		errs = append(errs, err)
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if p.MaxRetries <= 0 {
		if err := operation(); err != nil {
			var zero T
			return zero, attempts, &RetryError{errs: errs}
		}
		return result, attempts, nil
	}

	notify := func(err error, delay time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempts, err, delay)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, newBackOff(ctx, p), notify, p.Timer)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
			err = cerr
		}
		if len(errs) == 0 || !errors.Is(errs[len(errs)-1], err) {
			errs = append(errs, err)
		}
		var zero T
		return zero, attempts, &RetryError{errs: errs}
	}
	return result, attempts, nil
}

func newBackOff(ctx context.Context, p Policy) backoff.BackOff {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = models.DefaultMultiplier
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = uncappedDelay
	}
	jitter := p.Jitter
	if jitter < 0 || jitter >= 1 {
		jitter = 0
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialDelay
	eb.RandomizationFactor = jitter
	eb.Multiplier = multiplier
	eb.MaxInterval = maxDelay
	eb.MaxElapsedTime = 0
	eb.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.MaxRetries)), ctx)
}

// IsRetryable reports whether another attempt could succeed. Caller
// cancellation and non-retryable AppErrors are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.IsRetryable()
	}
	return true
}
