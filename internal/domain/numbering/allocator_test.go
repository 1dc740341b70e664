package numbering

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
)

func TestAllocator_PreviewDoesNotAdvance(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	first, err := h.allocator.Preview(ctx, "INV-")
	require.NoError(t, err)
	second, err := h.allocator.Preview(ctx, "INV-")
	require.NoError(t, err)

	assert.Equal(t, "INV-1001", first)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(0), h.series(t, "INV-").Current)
}

func TestAllocator_AllocateNextSkipsTakenNumbers(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	h.store.InsertNumber(numerator.SalesInvoice, "INV-1001")
	h.store.InsertNumber(numerator.SalesInvoice, "INV-1002")

	number, s, err := h.allocator.AllocateNext(context.Background(), "INV-", numerator.SalesInvoice,
		h.service.existsFunc(numerator.SalesInvoice))
	require.NoError(t, err)

	assert.Equal(t, "INV-1003", number)
	assert.Equal(t, int64(1003), s.Current)
	assert.Equal(t, int64(1003), h.series(t, "INV-").Current)
	assert.Equal(t, 2, h.recorder.conflicts)
}

func TestAllocator_AllocateNextExhausted(t *testing.T) {
	h := newHarness(t, 3)
	h.configure(t, numerator.SalesInvoice, "INV")
	for _, n := range []string{"INV-1001", "INV-1002", "INV-1003"} {
		h.store.InsertNumber(numerator.SalesInvoice, n)
	}

	_, _, err := h.allocator.AllocateNext(context.Background(), "INV-", numerator.SalesInvoice,
		h.service.existsFunc(numerator.SalesInvoice))

	require.Error(t, err)
	assert.True(t, apperror.IsSequenceExhausted(err))
	assert.Equal(t, int64(0), h.series(t, "INV-").Current)
	assert.Equal(t, 1, h.recorder.exhausted)
}

func TestAllocator_AllocateNextExhaustedWithDefaultAttempts(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	for n := 1001; n <= 1010; n++ {
		h.store.InsertNumber(numerator.SalesInvoice, fmt.Sprintf("INV-%d", n))
	}

	_, _, err := h.allocator.AllocateNext(context.Background(), "INV-", numerator.SalesInvoice,
		h.service.existsFunc(numerator.SalesInvoice))

	require.Error(t, err)
	assert.True(t, apperror.IsSequenceExhausted(err))
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, numerator.DefaultMaxAttempts, appErr.Details["attempts"])
	assert.Equal(t, 10, appErr.Details["attempts"])
	assert.Equal(t, 10, h.recorder.conflicts)
	assert.Equal(t, int64(0), h.series(t, "INV-").Current)
}

func TestAllocator_AllocateNextUnknownSeries(t *testing.T) {
	h := newHarness(t, 0)

	_, _, err := h.allocator.AllocateNext(context.Background(), "NOPE-", numerator.SalesInvoice,
		func(context.Context, string) (bool, error) { return false, nil })

	assert.True(t, apperror.IsNotFound(err))
}

func TestAllocator_AdvanceIfGreaterNeverDecreases(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	before, after, err := h.allocator.AdvanceIfGreater(ctx, "INV-", 1050)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before)
	assert.Equal(t, int64(1050), after)

	before, after, err = h.allocator.AdvanceIfGreater(ctx, "INV-", 1010)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), before)
	assert.Equal(t, int64(1050), after)
}

func TestAllocator_ConcurrentAllocationsAreUnique(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	const workers = 25
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, _, err := h.allocator.AllocateNext(ctx, "INV-", numerator.SalesInvoice,
				h.service.existsFunc(numerator.SalesInvoice))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers)
	assert.Equal(t, int64(1000+workers), h.series(t, "INV-").Current)
}
