package numbering_repo

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"docseries/internal/core/numerator"
	"docseries/internal/infrastructure/storage/postgres"
)

// SettingsRepo implements numerator.SettingsStore on the single
// accounting_settings row.
type SettingsRepo struct {
	db postgres.QuerierSource
}

// NewSettingsRepo creates a settings repository.
func NewSettingsRepo(db postgres.QuerierSource) *SettingsRepo {
	return &SettingsRepo{db: db}
}

var _ numerator.SettingsStore = (*SettingsRepo)(nil)

func (r *SettingsRepo) GetSettings(ctx context.Context) (*numerator.AccountingSettings, error) {
	var s numerator.AccountingSettings
	err := pgxscan.Get(ctx, r.db.GetQuerier(ctx), &s, `
		SELECT invoice_number_prefix, current_invoice_number, manual_invoice_numbering, updated_at
		FROM accounting_settings WHERE id = 1`)
	if err != nil {
		if pgxscan.NotFound(err) {
			return numerator.DefaultAccountingSettings(), nil
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepo) SaveSettings(ctx context.Context, s *numerator.AccountingSettings) error {
	_, err := r.db.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO accounting_settings (id, invoice_number_prefix, current_invoice_number, manual_invoice_numbering, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			invoice_number_prefix = EXCLUDED.invoice_number_prefix,
			current_invoice_number = EXCLUDED.current_invoice_number,
			manual_invoice_numbering = EXCLUDED.manual_invoice_numbering,
			updated_at = EXCLUDED.updated_at`,
		s.InvoiceNumberPrefix, s.CurrentInvoiceNumber, s.ManualInvoiceNumbering)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// nextInvoiceSQL increments the counter and returns the pre-increment value
// rendered with the prefix.
const nextInvoiceSQL = `
	UPDATE accounting_settings
	SET current_invoice_number = GREATEST(current_invoice_number, 1) + 1,
	    updated_at = NOW()
	WHERE id = 1
	RETURNING invoice_number_prefix || (current_invoice_number - 1)::text`

func (r *SettingsRepo) NextInvoiceNumber(ctx context.Context) (string, error) {
	var number string
	if err := r.db.GetQuerier(ctx).QueryRow(ctx, nextInvoiceSQL).Scan(&number); err != nil {
		if postgres.IsNoRows(err) {
			return "", fmt.Errorf("accounting settings row is missing, run migrations")
		}
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return number, nil
}
