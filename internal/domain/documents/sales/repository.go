package sales

import (
	"context"

	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/domain"
)

// Repository defines storage operations for sales documents.
//
// Number is unique per document type: Create must fail with an error
// wrapping numerator.ErrNumberTaken when it is not.
type Repository interface {
	numerator.DocumentIndex

	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, docID id.ID) (*Document, error)
	GetByNumber(ctx context.Context, documentType, number string) (*Document, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)
}

// ListFilter for filtering sales documents.
type ListFilter struct {
	domain.ListFilter

	DocumentType string
	Party        string
}
