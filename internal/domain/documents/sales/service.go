package sales

import (
	"context"
	"fmt"

	"docseries/internal/core/apperror"
	appctx "docseries/internal/core/context"
	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/core/tx"
	"docseries/internal/domain"
	"docseries/pkg/logger"
)

// Service provides business operations for sales documents.
type Service struct {
	repo      Repository
	numberer  numerator.Numberer
	txManager tx.Manager
	hooks     *domain.HookRegistry[*Document]
}

// NewService creates a new sales document service.
func NewService(repo Repository, numberer numerator.Numberer, txManager tx.Manager) *Service {
	if txManager == nil {
		txManager = tx.Nop{}
	}
	return &Service{
		repo:      repo,
		numberer:  numberer,
		txManager: txManager,
		hooks:     domain.NewHookRegistry[*Document](),
	}
}

// Hooks returns the hook registry for extension.
func (s *Service) Hooks() *domain.HookRegistry[*Document] {
	return s.hooks
}

// NewDraft returns an unsaved document carrying the previewed number, if any.
// The number is display-only until Create reserves it.
func (s *Service) NewDraft(ctx context.Context, documentType string) (*Document, error) {
	if !IsSalesType(documentType) {
		return nil, apperror.NewValidation("unsupported sales document type").
			WithDetail("field", "documentType").
			WithDetail("value", documentType)
	}
	doc := NewDocument(documentType)
	if number := s.numberer.Preview(ctx, documentType); number != "" {
		if err := doc.MarkPreviewed(number); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Create numbers and stores a new sales document.
//
// A number carried by the document (previewed or typed by the user) is
// kept when still free; otherwise a fresh one is reserved. A collision
// reported by storage makes the numberer reserve again.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	doc.Recalculate()
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if doc.CreatedBy == "" {
		doc.CreatedBy = appctx.GetOperator(ctx)
	}

	persist := func(ctx context.Context) error {
		return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.hooks.RunBeforeCreate(ctx, doc); err != nil {
				return err
			}
			if err := s.repo.Create(ctx, doc); err != nil {
				return fmt.Errorf("create document: %w", err)
			}
			return nil
		})
	}

	res, err := s.numberer.Save(ctx, doc, persist)
	if err != nil {
		return err
	}

	logger.Info(ctx, "sales document created",
		"id", doc.ID,
		"document_type", doc.DocumentType,
		"number", doc.Number,
		"source", res.Source)

	if err := s.hooks.RunAfterCreate(ctx, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "id", doc.ID, "error", err)
	}
	return nil
}

// GetByID retrieves a document with lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Document, error) {
	return s.repo.GetByID(ctx, docID)
}

// GetByNumber retrieves a document by its number.
func (s *Service) GetByNumber(ctx context.Context, documentType, number string) (*Document, error) {
	return s.repo.GetByNumber(ctx, documentType, number)
}

// List retrieves documents with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
