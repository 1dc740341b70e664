package document_repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
	"docseries/internal/core/types"
	"docseries/internal/domain/documents/sales"
	"docseries/internal/infrastructure/storage/postgres"
)

type execCall struct {
	sql  string
	args []any
}

type fakeQuerier struct {
	calls   []execCall
	execErr error
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported in tests")
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

type fakeSource struct{ q *fakeQuerier }

func (s fakeSource) GetQuerier(context.Context) postgres.Querier { return s.q }

func newInvoice() *sales.Document {
	doc := sales.NewDocument(numerator.SalesInvoice)
	doc.Number = "INV-1001"
	doc.Party = "Acme"
	doc.AddLine("A-1", "Bolt", types.MustMoney("2"), types.MustMoney("1.50"))
	return doc
}

func TestSalesRepo_CreateInsertsHeaderAndLines(t *testing.T) {
	q := &fakeQuerier{}
	repo := NewSalesRepo(fakeSource{q})

	require.NoError(t, repo.Create(context.Background(), newInvoice()))

	require.Len(t, q.calls, 2)
	assert.Contains(t, q.calls[0].sql, "INSERT INTO sales_documents")
	assert.Contains(t, q.calls[0].args, "INV-1001")
	assert.Contains(t, q.calls[1].sql, "INSERT INTO sales_document_lines")
}

func TestSalesRepo_CreateDuplicateNumber(t *testing.T) {
	q := &fakeQuerier{execErr: &pgconn.PgError{
		Code:           "23505",
		ConstraintName: postgres.ConstraintDocumentTypeNumber,
	}}
	repo := NewSalesRepo(fakeSource{q})

	err := repo.Create(context.Background(), newInvoice())

	assert.True(t, numerator.IsNumberTaken(err))
	assert.Len(t, q.calls, 1)
}

func TestSalesRepo_CreateOtherUniqueViolation(t *testing.T) {
	q := &fakeQuerier{execErr: &pgconn.PgError{Code: "23505", ConstraintName: "sales_documents_pkey"}}
	repo := NewSalesRepo(fakeSource{q})

	err := repo.Create(context.Background(), newInvoice())

	require.Error(t, err)
	assert.False(t, numerator.IsNumberTaken(err))
}

func TestParseOrderBy(t *testing.T) {
	got, err := parseOrderBy("")
	require.NoError(t, err)
	assert.Equal(t, "created_at DESC", got)

	got, err = parseOrderBy("-number")
	require.NoError(t, err)
	assert.Equal(t, "number DESC, id DESC", got)

	got, err = parseOrderBy("date")
	require.NoError(t, err)
	assert.Equal(t, "date ASC, id ASC", got)

	_, err = parseOrderBy("number; DROP TABLE x")
	assert.True(t, apperror.IsValidation(err))
}
