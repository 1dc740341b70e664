// Package sales provides the numbered sales documents: invoices, orders and quotations.
package sales

import (
	"context"
	"strings"

	"docseries/internal/core/apperror"
	"docseries/internal/core/entity"
	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/core/types"
)

// Document is a sales invoice, order or quotation.
type Document struct {
	entity.Document

	// Party is the customer name.
	Party string `db:"party" json:"party"`

	// Currency is an ISO 4217 code.
	Currency string `db:"currency" json:"currency"`

	GrandTotal types.Money `db:"grand_total" json:"grandTotal"`

	// Table part
	Lines []Line `db:"-" json:"lines"`
}

// Line is one item row of a sales document.
type Line struct {
	LineID   id.ID       `db:"line_id" json:"lineId"`
	LineNo   int         `db:"line_no" json:"lineNo"`
	ItemCode string      `db:"item_code" json:"itemCode"`
	ItemName string      `db:"item_name" json:"itemName,omitempty"`
	Quantity types.Money `db:"quantity" json:"quantity"`
	Rate     types.Money `db:"rate" json:"rate"`
	Amount   types.Money `db:"amount" json:"amount"`
}

// DefaultCurrency is used when a document has none.
const DefaultCurrency = "USD"

// Types lists the document types this package stores.
func Types() []string {
	return []string{numerator.SalesInvoice, numerator.SalesOrder, numerator.SalesQuote}
}

// IsSalesType reports whether documentType is stored by this package.
func IsSalesType(documentType string) bool {
	for _, t := range Types() {
		if t == documentType {
			return true
		}
	}
	return false
}

// NewDocument creates an empty sales document of the given type.
func NewDocument(documentType string) *Document {
	return &Document{
		Document:   entity.NewDocument(documentType),
		Currency:   DefaultCurrency,
		GrandTotal: types.Zero(),
		Lines:      make([]Line, 0),
	}
}

// AddLine appends a line and recalculates totals.
func (d *Document) AddLine(itemCode, itemName string, quantity, rate types.Money) {
	d.Lines = append(d.Lines, Line{
		LineID:   id.New(),
		LineNo:   len(d.Lines) + 1,
		ItemCode: itemCode,
		ItemName: itemName,
		Quantity: quantity,
		Rate:     rate,
	})
	d.Recalculate()
}

// Recalculate renumbers lines and recomputes line amounts and the grand total.
func (d *Document) Recalculate() {
	amounts := make([]types.Money, 0, len(d.Lines))
	for i := range d.Lines {
		l := &d.Lines[i]
		l.LineNo = i + 1
		if id.IsNil(l.LineID) {
			l.LineID = id.New()
		}
		l.Amount = types.LineAmount(l.Quantity, l.Rate)
		amounts = append(amounts, l.Amount)
	}
	d.GrandTotal = types.Sum(amounts...)
}

// Validate implements entity.Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if err := d.Document.Validate(ctx); err != nil {
		return err
	}

	if !IsSalesType(d.DocumentType) {
		return apperror.NewValidation("unsupported sales document type").
			WithDetail("field", "documentType").
			WithDetail("value", d.DocumentType)
	}

	if strings.TrimSpace(d.Party) == "" {
		return apperror.NewValidation("party is required").
			WithDetail("field", "party")
	}

	if len(d.Currency) != 3 {
		return apperror.NewValidation("currency must be a 3-letter code").
			WithDetail("field", "currency")
	}

	if len(d.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	for i, line := range d.Lines {
		if strings.TrimSpace(line.ItemCode) == "" {
			return apperror.NewValidation("item code is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.Rate.IsNegative() {
			return apperror.NewValidation("rate cannot be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

var _ numerator.Numbered = (*Document)(nil)
