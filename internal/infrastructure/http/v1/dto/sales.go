package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"docseries/internal/domain/documents/sales"
)

// SalesLineRequest is one item row.
type SalesLineRequest struct {
	ItemCode string          `json:"itemCode" binding:"required,max=64"`
	ItemName string          `json:"itemName" binding:"max=256"`
	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
}

// CreateSalesDocumentRequest creates an invoice, order or quotation.
// Number is the previewed number or, in manual mode, the user's number.
type CreateSalesDocumentRequest struct {
	Number   string             `json:"number" binding:"max=140"`
	Date     *time.Time         `json:"date"`
	Party    string             `json:"party" binding:"required,max=256"`
	Currency string             `json:"currency" binding:"omitempty,len=3"`
	Comment  string             `json:"comment" binding:"max=1024"`
	Lines    []SalesLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToDocument builds an unsaved document of documentType.
func (r CreateSalesDocumentRequest) ToDocument(documentType string) *sales.Document {
	doc := sales.NewDocument(documentType)
	doc.Number = r.Number
	doc.Party = r.Party
	doc.Comment = r.Comment
	if r.Date != nil {
		doc.Date = r.Date.UTC()
	}
	if r.Currency != "" {
		doc.Currency = r.Currency
	}
	for _, l := range r.Lines {
		doc.AddLine(l.ItemCode, l.ItemName, l.Quantity, l.Rate)
	}
	return doc
}

// SalesListQuery filters sales documents.
type SalesListQuery struct {
	ListQuery
	Party string `form:"party"`
}

// ToFilter converts the query for documentType.
func (q SalesListQuery) ToFilter(documentType string) sales.ListFilter {
	return sales.ListFilter{
		ListFilter:   q.ListQuery.ToFilter(),
		DocumentType: documentType,
		Party:        q.Party,
	}
}

// SalesLineResponse is one item row.
type SalesLineResponse struct {
	LineNo   int             `json:"lineNo"`
	ItemCode string          `json:"itemCode"`
	ItemName string          `json:"itemName,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Rate     decimal.Decimal `json:"rate"`
	Amount   decimal.Decimal `json:"amount"`
}

// SalesDocumentResponse describes a stored or draft sales document.
type SalesDocumentResponse struct {
	ID             string              `json:"id"`
	DocumentType   string              `json:"documentType"`
	Number         string              `json:"number"`
	NumberSeries   string              `json:"numberSeries,omitempty"`
	NumberSource   string              `json:"numberSource,omitempty"`
	NumberingState string              `json:"numberingState"`
	Date           time.Time           `json:"date"`
	Party          string              `json:"party"`
	Currency       string              `json:"currency"`
	GrandTotal     decimal.Decimal     `json:"grandTotal"`
	Comment        string              `json:"comment,omitempty"`
	Lines          []SalesLineResponse `json:"lines"`
	CreatedBy      string              `json:"createdBy,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// FromSalesDocument creates SalesDocumentResponse from sales.Document.
func FromSalesDocument(d *sales.Document) SalesDocumentResponse {
	lines := make([]SalesLineResponse, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, SalesLineResponse{
			LineNo:   l.LineNo,
			ItemCode: l.ItemCode,
			ItemName: l.ItemName,
			Quantity: l.Quantity,
			Rate:     l.Rate,
			Amount:   l.Amount,
		})
	}
	return SalesDocumentResponse{
		ID:             d.ID.String(),
		DocumentType:   d.DocumentType,
		Number:         d.Number,
		NumberSeries:   d.NumberSeries,
		NumberSource:   d.NumberSource,
		NumberingState: string(d.NumberingState()),
		Date:           d.Date,
		Party:          d.Party,
		Currency:       d.Currency,
		GrandTotal:     d.GrandTotal,
		Comment:        d.Comment,
		Lines:          lines,
		CreatedBy:      d.CreatedBy,
		CreatedAt:      d.CreatedAt,
	}
}
