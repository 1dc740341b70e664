package numerator

import "errors"

var (
	// ErrNumberTaken signals that a candidate number is already used by a stored document.
	ErrNumberTaken = errors.New("number already taken")

	// ErrRetriesExhausted is returned by Retry when every attempt ended in a conflict.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrSeriesNotFound is returned by SeriesStore when a series id is unknown.
	ErrSeriesNotFound = errors.New("number series not found")

	// ErrSeriesExists is returned by SeriesStore.CreateSeries on a duplicate id.
	ErrSeriesExists = errors.New("number series already exists")

	// ErrConfigNotFound is returned by ConfigStore when a configuration id is unknown.
	ErrConfigNotFound = errors.New("numbering configuration not found")
)

// IsNumberTaken reports whether err signals a number collision.
func IsNumberTaken(err error) bool {
	return errors.Is(err, ErrNumberTaken)
}
