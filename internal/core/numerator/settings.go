package numerator

import (
	"strconv"
	"time"
)

// AccountingSettings holds the company-wide fallback counter used when a
// document type has no bound series.
type AccountingSettings struct {
	InvoiceNumberPrefix    string    `db:"invoice_number_prefix" json:"invoiceNumberPrefix"`
	CurrentInvoiceNumber   int64     `db:"current_invoice_number" json:"currentInvoiceNumber"`
	ManualInvoiceNumbering bool      `db:"manual_invoice_numbering" json:"manualInvoiceNumbering"`
	UpdatedAt              time.Time `db:"updated_at" json:"updatedAt"`
}

// DefaultAccountingSettings returns an unprefixed counter starting at 1.
func DefaultAccountingSettings() *AccountingSettings {
	return &AccountingSettings{CurrentInvoiceNumber: 1}
}

// PeekInvoiceNumber returns the number the fallback counter would hand out next.
func (s *AccountingSettings) PeekInvoiceNumber() string {
	n := s.CurrentInvoiceNumber
	if n < 1 {
		n = 1
	}
	return s.InvoiceNumberPrefix + strconv.FormatInt(n, 10)
}

// TakeInvoiceNumber returns the next fallback number and advances the counter.
func (s *AccountingSettings) TakeInvoiceNumber() string {
	number := s.PeekInvoiceNumber()
	if s.CurrentInvoiceNumber < 1 {
		s.CurrentInvoiceNumber = 1
	}
	s.CurrentInvoiceNumber++
	return number
}
