// Package numbering implements the document numbering engine: the series
// allocator, the configuration resolver, the save-time lifecycle and the
// administrative operations around them.
package numbering

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
	"docseries/pkg/logger"
)

var tracer = otel.Tracer("docseries/numbering")

// AllocatorConfig configures an Allocator.
type AllocatorConfig struct {
	Series   numerator.SeriesStore
	Locker   numerator.Locker   // defaults to an in-process KeyedMutex
	Recorder numerator.Recorder // defaults to NopRecorder
	// MaxAttempts bounds AllocateNext (default numerator.DefaultMaxAttempts).
	MaxAttempts int
}

// Allocator is the only component that mutates a series' counter.
// Both mutating paths hold the series lock for reload, compute and write.
type Allocator struct {
	series      numerator.SeriesStore
	locker      numerator.Locker
	recorder    numerator.Recorder
	maxAttempts int
}

// NewAllocator creates an Allocator.
func NewAllocator(cfg AllocatorConfig) *Allocator {
	a := &Allocator{
		series:      cfg.Series,
		locker:      cfg.Locker,
		recorder:    cfg.Recorder,
		maxAttempts: cfg.MaxAttempts,
	}
	if a.locker == nil {
		a.locker = NewKeyedMutex()
	}
	if a.recorder == nil {
		a.recorder = numerator.NopRecorder{}
	}
	if a.maxAttempts <= 0 {
		a.maxAttempts = numerator.DefaultMaxAttempts
	}
	return a
}

// MaxAttempts returns the retry budget of AllocateNext.
func (a *Allocator) MaxAttempts() int {
	return a.maxAttempts
}

// Preview returns the next number of the series without reserving it.
func (a *Allocator) Preview(ctx context.Context, seriesID string) (string, error) {
	s, err := a.load(ctx, seriesID)
	if err != nil {
		return "", err
	}
	return s.Preview(), nil
}

// AllocateNext reloads the series, walks forward from its next value until
// exists reports a free number, and stores that value as current.
// Running out of attempts fails with SEQUENCE_EXHAUSTED.
func (a *Allocator) AllocateNext(ctx context.Context, seriesID, documentType string, exists numerator.ExistsFunc) (string, *numerator.Series, error) {
	ctx, span := tracer.Start(ctx, "numbering.allocate_next", trace.WithAttributes(
		attribute.String("numbering.series", seriesID),
		attribute.String("numbering.document_type", documentType),
	))
	defer span.End()

	unlock, err := a.locker.Lock(ctx, seriesID)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("lock series %s: %w", seriesID, err))
	}
	defer unlock()

	s, err := a.load(ctx, seriesID)
	if err != nil {
		return "", nil, err
	}

	first := s.NextValue()
	var value int64
	number, attempts, err := numerator.Retry(ctx, numerator.RetryPolicy{
		MaxAttempts: a.maxAttempts,
		IsConflict:  numerator.IsNumberTaken,
	}, func(ctx context.Context, attempt int) (string, error) {
		candidate := first + int64(attempt)
		number := s.Format(candidate)
		taken, err := exists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", number, err)
		}
		if taken {
			a.recorder.Conflict(documentType)
			logger.Debug(ctx, "number taken, trying next",
				"series", seriesID, "number", number, "attempt", attempt+1)
			return "", numerator.ErrNumberTaken
		}
		value = candidate
		return number, nil
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, numerator.ErrRetriesExhausted) {
			a.recorder.Exhausted(documentType)
			return "", nil, apperror.NewSequenceExhausted(documentType, attempts).
				WithDetail("series_id", seriesID).
				WithCause(err)
		}
		return "", nil, storeError("allocate number", seriesID, err)
	}

	_, after, err := a.series.AdvanceCurrent(ctx, seriesID, value)
	if err != nil {
		return "", nil, storeError("advance series", seriesID, err)
	}
	s.Current = after
	span.SetAttributes(attribute.String("numbering.number", number))

	return number, s, nil
}

// AdvanceIfGreater sets current = max(current, observed). It never decreases the counter.
func (a *Allocator) AdvanceIfGreater(ctx context.Context, seriesID string, observed int64) (before, after int64, err error) {
	unlock, err := a.locker.Lock(ctx, seriesID)
	if err != nil {
		return 0, 0, apperror.NewInternal(fmt.Errorf("lock series %s: %w", seriesID, err))
	}
	defer unlock()

	before, after, err = a.series.AdvanceCurrent(ctx, seriesID, observed)
	if err != nil {
		return 0, 0, storeError("advance series", seriesID, err)
	}
	return before, after, nil
}

func (a *Allocator) load(ctx context.Context, seriesID string) (*numerator.Series, error) {
	s, err := a.series.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, storeError("get series", seriesID, err)
	}
	return s, nil
}

// storeError maps storage failures to AppError, keeping AppErrors as they are.
func storeError(op, seriesID string, err error) error {
	if errors.Is(err, numerator.ErrSeriesNotFound) {
		return apperror.NewNotFound("number series", seriesID).WithCause(err)
	}
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewDatabase(op, err).WithDetail("series_id", seriesID)
}
