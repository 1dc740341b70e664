package numerator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterConflicts(t *testing.T) {
	var seen []int
	v, attempts, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 5}, func(_ context.Context, attempt int) (string, error) {
		seen = append(seen, attempt)
		if attempt < 2 {
			return "", ErrNumberTaken
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	_, attempts, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 10}, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, ErrNumberTaken
	})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrNumberTaken)
	assert.Equal(t, 10, attempts)
	assert.Equal(t, 10, calls)
}

func TestRetry_StopsOnOtherErrors(t *testing.T) {
	boom := errors.New("storage down")
	calls := 0
	_, _, err := Retry(context.Background(), RetryPolicy{MaxAttempts: 10}, func(_ context.Context, _ int) (int, error) {
		calls++
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 1, calls)
}

func TestRetry_CustomConflictPredicate(t *testing.T) {
	busy := errors.New("busy")
	_, attempts, err := Retry(context.Background(), RetryPolicy{
		MaxAttempts: 3,
		IsConflict:  func(err error) bool { return errors.Is(err, busy) },
	}, func(_ context.Context, _ int) (int, error) {
		return 0, busy
	})

	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, _, err := Retry(ctx, RetryPolicy{MaxAttempts: 3}, func(_ context.Context, _ int) (int, error) {
		calls++
		return 1, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}
