// Package numbering_repo provides PostgreSQL implementations of the numbering stores.
package numbering_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docseries/internal/core/numerator"
	"docseries/internal/infrastructure/storage/postgres"
)

const seriesTable = "number_series"

var seriesColumns = postgres.ExtractDBColumns[numerator.Series]()

// SeriesRepo implements numerator.SeriesStore.
type SeriesRepo struct {
	db postgres.QuerierSource
}

// NewSeriesRepo creates a series repository.
func NewSeriesRepo(db postgres.QuerierSource) *SeriesRepo {
	return &SeriesRepo{db: db}
}

var _ numerator.SeriesStore = (*SeriesRepo)(nil)

func (r *SeriesRepo) GetSeries(ctx context.Context, seriesID string) (*numerator.Series, error) {
	sql, args, err := postgres.Builder().
		Select(seriesColumns...).
		From(seriesTable).
		Where(squirrel.Eq{"id": seriesID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var s numerator.Series
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s", numerator.ErrSeriesNotFound, seriesID)
		}
		return nil, fmt.Errorf("get series: %w", err)
	}
	return &s, nil
}

func (r *SeriesRepo) SeriesExists(ctx context.Context, seriesID string) (bool, error) {
	var exists bool
	err := r.db.GetQuerier(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM number_series WHERE id = $1)`, seriesID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("series exists: %w", err)
	}
	return exists, nil
}

func (r *SeriesRepo) CreateSeries(ctx context.Context, s *numerator.Series) error {
	data := postgres.PickColumns(postgres.StructToMap(s), seriesColumns)
	sql, args, err := postgres.Builder().
		Insert(seriesTable).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapUniqueViolation(err, postgres.ConstraintSeriesPK, numerator.ErrSeriesExists)
	}
	return nil
}

func (r *SeriesRepo) UpdateSeriesSettings(ctx context.Context, seriesID string, start int64, padWidth int) error {
	sql, args, err := postgres.Builder().
		Update(seriesTable).
		Set("start", start).
		Set("pad_width", padWidth).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": seriesID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", numerator.ErrSeriesNotFound, seriesID)
	}
	return nil
}

// advanceSQL locks the row, remembers the old counter and raises it to the
// given value in one statement.
const advanceSQL = `
	WITH prev AS (
		SELECT id, current FROM number_series WHERE id = $1 FOR UPDATE
	)
	UPDATE number_series AS s
	SET current = GREATEST(s.current, $2),
	    updated_at = CASE WHEN $2 > s.current THEN NOW() ELSE s.updated_at END
	FROM prev
	WHERE s.id = prev.id
	RETURNING prev.current, s.current`

func (r *SeriesRepo) AdvanceCurrent(ctx context.Context, seriesID string, value int64) (before, after int64, err error) {
	err = r.db.GetQuerier(ctx).QueryRow(ctx, advanceSQL, seriesID, value).Scan(&before, &after)
	if err != nil {
		if postgres.IsNoRows(err) {
			return 0, 0, fmt.Errorf("%w: %s", numerator.ErrSeriesNotFound, seriesID)
		}
		return 0, 0, fmt.Errorf("advance series: %w", err)
	}
	return before, after, nil
}

func (r *SeriesRepo) ListSeries(ctx context.Context) ([]*numerator.Series, error) {
	sql, args, err := postgres.Builder().
		Select(seriesColumns...).
		From(seriesTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var list []*numerator.Series
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	return list, nil
}
