// Package document_repo provides PostgreSQL implementations for document repositories.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docseries/internal/core/apperror"
	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/domain"
	"docseries/internal/domain/documents/sales"
	"docseries/internal/infrastructure/storage/postgres"
)

const (
	salesTable      = "sales_documents"
	salesLinesTable = "sales_document_lines"
)

var (
	salesColumns = postgres.ExtractDBColumns[sales.Document]()
	lineColumns  = []string{"line_id", "line_no", "item_code", "item_name", "quantity", "rate", "amount"}
)

// SalesRepo implements sales.Repository and numerator.DocumentIndex.
type SalesRepo struct {
	db postgres.QuerierSource
}

// NewSalesRepo creates a sales document repository.
func NewSalesRepo(db postgres.QuerierSource) *SalesRepo {
	return &SalesRepo{db: db}
}

var _ sales.Repository = (*SalesRepo)(nil)

// Create inserts the header and lines. A duplicate (document_type, number)
// fails with an error wrapping numerator.ErrNumberTaken. Call it inside a
// transaction so a failed line insert rolls the header back.
func (r *SalesRepo) Create(ctx context.Context, doc *sales.Document) error {
	data := postgres.PickColumns(postgres.StructToMap(doc), salesColumns)
	sql, args, err := postgres.Builder().
		Insert(salesTable).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.db.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		err = postgres.MapUniqueViolation(err, postgres.ConstraintDocumentTypeNumber, numerator.ErrNumberTaken)
		return fmt.Errorf("insert %s: %w", salesTable, err)
	}

	return r.insertLines(ctx, doc.ID, doc.Lines)
}

func (r *SalesRepo) insertLines(ctx context.Context, docID id.ID, lines []sales.Line) error {
	if len(lines) == 0 {
		return nil
	}

	q := postgres.Builder().
		Insert(salesLinesTable).
		Columns(append([]string{"document_id"}, lineColumns...)...)
	for _, l := range lines {
		q = q.Values(docID, l.LineID, l.LineNo, l.ItemCode, l.ItemName, l.Quantity, l.Rate, l.Amount)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

func (r *SalesRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(salesColumns...).
		From(salesTable)
}

func (r *SalesRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*sales.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := &sales.Document{}
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sales document", key)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.MarkLoaded()

	lines, err := r.getLines(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return doc, nil
}

func (r *SalesRepo) getLines(ctx context.Context, docID id.ID) ([]sales.Line, error) {
	sql, args, err := postgres.Builder().
		Select(lineColumns...).
		From(salesLinesTable).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := make([]sales.Line, 0)
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	return lines, nil
}

func (r *SalesRepo) GetByID(ctx context.Context, docID id.ID) (*sales.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID.String())
}

func (r *SalesRepo) GetByNumber(ctx context.Context, documentType, number string) (*sales.Document, error) {
	return r.getOne(ctx,
		r.baseSelect().Where(squirrel.Eq{"document_type": documentType, "number": number}),
		number)
}

// NumberExists implements numerator.DocumentIndex.
func (r *SalesRepo) NumberExists(ctx context.Context, documentType, number string) (bool, error) {
	var exists bool
	err := r.db.GetQuerier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM sales_documents WHERE document_type = $1 AND number = $2)`,
		documentType, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("number exists: %w", err)
	}
	return exists, nil
}

// ListNumbers implements numerator.DocumentIndex. The prefix is compared
// literally, so LIKE wildcards in series ids need no escaping.
func (r *SalesRepo) ListNumbers(ctx context.Context, documentType, prefix string) ([]string, error) {
	sql, args, err := postgres.Builder().
		Select("number").
		From(salesTable).
		Where(squirrel.Eq{"document_type": documentType}).
		Where("left(number, length(?)) = ?", prefix, prefix).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var numbers []string
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &numbers, sql, args...); err != nil {
		return nil, fmt.Errorf("list numbers: %w", err)
	}
	return numbers, nil
}

// List retrieves headers (without lines) with filtering and pagination.
func (r *SalesRepo) List(ctx context.Context, filter sales.ListFilter) (domain.ListResult[*sales.Document], error) {
	result := domain.ListResult[*sales.Document]{
		Items:  []*sales.Document{},
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()
	if filter.DocumentType != "" {
		q = q.Where(squirrel.Eq{"document_type": filter.DocumentType})
	}
	if filter.Party != "" {
		q = q.Where(squirrel.ILike{"party": filter.Party})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"number": "%" + filter.Search + "%"})
	}

	countSQL, countArgs, err := postgres.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	querier := r.db.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	for _, d := range result.Items {
		d.MarkLoaded()
	}
	return result, nil
}

var sortable = map[string]struct{}{
	"number":      {},
	"date":        {},
	"party":       {},
	"grand_total": {},
	"created_at":  {},
	"updated_at":  {},
}

// parseOrderBy turns "-created_at" into "created_at DESC", rejecting unknown columns.
func parseOrderBy(orderBy string) (string, error) {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else {
		field = strings.TrimPrefix(orderBy, "+")
	}

	if _, ok := sortable[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}
	return field + " " + direction + ", id " + direction, nil
}
