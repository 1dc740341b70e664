package entity

import (
	"context"
	"time"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
)

// Document is the base type for numbered business transactions
// (invoices, orders, quotes).
type Document struct {
	BaseDocument

	// DocumentType selects the numbering configuration (e.g. "SalesInvoice").
	DocumentType string `db:"document_type" json:"documentType"`

	// Number is unique within DocumentType.
	Number string `db:"number" json:"number"`

	// NumberSeries is the series the number was reserved from, kept for audit.
	NumberSeries string `db:"number_series" json:"numberSeries,omitempty"`

	// NumberSource records how the number was obtained.
	NumberSource string `db:"number_source" json:"numberSource,omitempty"`

	// Date is the business date of the document
	Date time.Time `db:"date" json:"date"`

	// Comment is an optional user comment
	Comment string `db:"comment" json:"comment,omitempty"`

	state numerator.State
}

// NewDocument creates an unnumbered document of the given type.
func NewDocument(documentType string) Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		DocumentType: documentType,
		Date:         time.Now().UTC(),
		state:        numerator.StateNew,
	}
}

// Validate implements Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if d.DocumentType == "" {
		return apperror.NewValidation("document type is required").
			WithDetail("field", "documentType")
	}
	if d.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}
	return nil
}

// GetDocumentType implements numerator.Numbered.
func (d *Document) GetDocumentType() string {
	return d.DocumentType
}

// GetNumber implements numerator.Numbered.
func (d *Document) GetNumber() string {
	return d.Number
}

// NumberingState implements numerator.Numbered.
func (d *Document) NumberingState() numerator.State {
	if d.state == "" {
		return numerator.StateNew
	}
	return d.state
}

func (d *Document) moveTo(to numerator.State) error {
	from := d.NumberingState()
	if !numerator.CanTransition(from, to) {
		return apperror.NewInvalidTransition(string(from), string(to)).
			WithDetail("document_id", d.ID.String())
	}
	d.state = to
	return nil
}

// MarkPreviewed implements numerator.Numbered.
func (d *Document) MarkPreviewed(number string) error {
	if err := d.moveTo(numerator.StatePreviewed); err != nil {
		return err
	}
	d.Number = number
	return nil
}

// MarkReserved implements numerator.Numbered.
func (d *Document) MarkReserved(r numerator.Reservation) error {
	if err := d.moveTo(numerator.StateReserved); err != nil {
		return err
	}
	d.Number = r.Number
	d.NumberSeries = r.SeriesID
	d.NumberSource = string(r.Source)
	return nil
}

// MarkPersisted implements numerator.Numbered.
func (d *Document) MarkPersisted() error {
	return d.moveTo(numerator.StatePersisted)
}

// MarkLoaded flags a document read back from storage as persisted.
func (d *Document) MarkLoaded() {
	d.state = numerator.StatePersisted
}
