package numerator

import (
	"context"
	"fmt"
)

// RetryPolicy bounds a retry loop. IsConflict decides which errors are
// retried; any other error stops the loop immediately.
type RetryPolicy struct {
	MaxAttempts int
	IsConflict  func(error) bool
}

// Retry calls fn with attempt = 0, 1, ... until it succeeds, returns a
// non-conflict error, the context is done, or MaxAttempts conflicts occurred.
// The returned count is the number of attempts made.
// Exhaustion wraps both ErrRetriesExhausted and the last conflict.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	isConflict := p.IsConflict
	if isConflict == nil {
		isConflict = IsNumberTaken
	}

	var last error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, attempt, err
		}
		v, err := fn(ctx, attempt)
		if err == nil {
			return v, attempt + 1, nil
		}
		if !isConflict(err) {
			return zero, attempt + 1, err
		}
		last = err
	}
	return zero, maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, maxAttempts, last)
}
