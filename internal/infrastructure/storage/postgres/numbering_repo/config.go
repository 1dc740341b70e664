package numbering_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/infrastructure/storage/postgres"
)

const configTable = "numbering_configs"

var configColumns = postgres.ExtractDBColumns[numerator.ModuleConfig]()

// ConfigRepo implements numerator.ConfigStore.
type ConfigRepo struct {
	db postgres.QuerierSource
}

// NewConfigRepo creates a configuration repository.
func NewConfigRepo(db postgres.QuerierSource) *ConfigRepo {
	return &ConfigRepo{db: db}
}

var _ numerator.ConfigStore = (*ConfigRepo)(nil)

func (r *ConfigRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().
		Select(configColumns...).
		From(configTable).
		OrderBy("created_at", "id")
}

func (r *ConfigRepo) ListConfigs(ctx context.Context, documentType string) ([]*numerator.ModuleConfig, error) {
	return r.selectConfigs(ctx, r.baseSelect().Where(squirrel.Eq{"document_type": documentType}))
}

func (r *ConfigRepo) ListAllConfigs(ctx context.Context) ([]*numerator.ModuleConfig, error) {
	return r.selectConfigs(ctx, r.baseSelect())
}

func (r *ConfigRepo) selectConfigs(ctx context.Context, q squirrel.SelectBuilder) ([]*numerator.ModuleConfig, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var list []*numerator.ModuleConfig
	if err := pgxscan.Select(ctx, r.db.GetQuerier(ctx), &list, sql, args...); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return list, nil
}

func (r *ConfigRepo) GetConfig(ctx context.Context, configID id.ID) (*numerator.ModuleConfig, error) {
	sql, args, err := postgres.Builder().
		Select(configColumns...).
		From(configTable).
		Where(squirrel.Eq{"id": configID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cfg numerator.ModuleConfig
	if err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &cfg, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, fmt.Errorf("%w: %s", numerator.ErrConfigNotFound, configID)
		}
		return nil, fmt.Errorf("get configuration: %w", err)
	}
	return &cfg, nil
}

// SaveConfig upserts by id. created_at is kept on update.
func (r *ConfigRepo) SaveConfig(ctx context.Context, cfg *numerator.ModuleConfig) error {
	data := postgres.PickColumns(postgres.StructToMap(cfg), configColumns)

	cols := make([]string, 0, len(configColumns))
	vals := make([]any, 0, len(configColumns))
	for _, c := range configColumns {
		cols = append(cols, c)
		vals = append(vals, data[c])
	}

	sql, args, err := postgres.Builder().
		Insert(configTable).
		Columns(cols...).
		Values(vals...).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			numbering_mode = EXCLUDED.numbering_mode,
			series_id = EXCLUDED.series_id,
			is_active = EXCLUDED.is_active,
			display_prefix = EXCLUDED.display_prefix,
			start = EXCLUDED.start,
			pad_width = EXCLUDED.pad_width,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	return nil
}

func (r *ConfigRepo) DeactivateSiblings(ctx context.Context, documentType string, keep id.ID) (int64, error) {
	sql, args, err := postgres.Builder().
		Update(configTable).
		Set("is_active", false).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"document_type": documentType, "is_active": true}).
		Where(squirrel.NotEq{"id": keep}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	tag, err := r.db.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("deactivate configurations: %w", err)
	}
	return tag.RowsAffected(), nil
}
