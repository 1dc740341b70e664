package postgres

import (
	"context"

	"github.com/Masterminds/squirrel"
)

// querierSource hands out the querier for ctx. *TxManager implements it.
type querierSource interface {
	GetQuerier(ctx context.Context) Querier
}

// QuerierSource is the exported form used by repository packages.
type QuerierSource = querierSource

// Builder returns a squirrel builder for PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}
