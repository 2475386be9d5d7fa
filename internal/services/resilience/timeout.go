package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/models"
)

// WithTimeout runs op with a context derived from ctx that is cancelled when
// timeout elapses. If op has not returned by then, WithTimeout returns a
// timeout AppError carrying message without waiting for op. A non-positive
// timeout runs op directly.
func WithTimeout[T any](ctx context.Context, timeout time.Duration, message string, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	if message == "" {
		message = fmt.Sprintf("operation timed out after %v", timeout)
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{val: zero, err: models.NewInternalError(fmt.Sprintf("operation panicked: %v", r), nil)}
			}
		}()
		v, err := op(tctx)
		done <- result{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		// A context-aware op may return first with the deadline error
		if r.err != nil && ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
			return zero, models.NewTimeoutError(message, r.err)
		}
		return r.val, r.err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, models.NewTimeoutError(message, context.DeadlineExceeded)
	}
}
