// Package numerator provides domain contracts for document numbering:
// number series, module configurations, the storage ports the engine
// consumes and the API it exposes to document services.
// Implementations live in domain/numbering and the infrastructure layer.
package numerator

import "context"

// Source tells where a reserved number came from.
type Source string

const (
	// SourceKept: the proposed (usually previewed) number was still free.
	SourceKept Source = "kept"
	// SourceAllocated: a fresh number was allocated from the bound series.
	SourceAllocated Source = "allocated"
	// SourceManual: the user supplied the number in Manual mode.
	SourceManual Source = "manual"
	// SourceFallback: the company-wide fallback counter produced the number.
	SourceFallback Source = "fallback"
)

// Reservation is the outcome of the save-time numbering step.
type Reservation struct {
	DocumentType string `json:"documentType"`
	Number       string `json:"number"`
	SeriesID     string `json:"seriesId,omitempty"`
	Mode         Mode   `json:"mode"`
	Source       Source `json:"source"`
}

// Numbered is implemented by documents that go through the numbering lifecycle.
type Numbered interface {
	GetDocumentType() string
	GetNumber() string
	NumberingState() State
	// MarkPreviewed records a display-only number.
	MarkPreviewed(number string) error
	// MarkReserved records the number that will be persisted.
	MarkReserved(r Reservation) error
	// MarkPersisted moves the document to its terminal state.
	MarkPersisted() error
}

// Numberer is the numbering API used by document services.
type Numberer interface {
	// Preview returns the number a new document would get, or "" when the
	// type is manual, unconfigured or the lookup failed.
	Preview(ctx context.Context, documentType string) string

	// Reserve confirms proposed or allocates a fresh number for a save.
	Reserve(ctx context.Context, documentType, proposed string) (Reservation, error)

	// Reconcile folds a stored number back into its series. Never fails.
	Reconcile(ctx context.Context, documentType, number string)

	// Save runs reserve, persist and reconcile for doc. persist must fail
	// with an error wrapping ErrNumberTaken when storage rejects the number.
	Save(ctx context.Context, doc Numbered, persist func(ctx context.Context) error) (Reservation, error)
}
