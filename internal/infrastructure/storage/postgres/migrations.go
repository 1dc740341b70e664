package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"docseries/pkg/logger"
)

// Constraint names the repositories translate into domain errors.
const (
	ConstraintSeriesPK           = "number_series_pkey"
	ConstraintDocumentTypeNumber = "sales_documents_type_number_key"
)

// Migration is one schema step applied inside the migration transaction.
type Migration func(ctx context.Context, tx pgx.Tx) error

// Migrations maps version to step. Versions are applied in ascending order.
var Migrations = map[int64]Migration{
	2025010101: func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS number_series (
				id            text PRIMARY KEY,
				document_type text NOT NULL DEFAULT '',
				start         bigint NOT NULL DEFAULT 1001 CHECK (start >= 1),
				pad_width     integer NOT NULL DEFAULT 4 CHECK (pad_width >= 0),
				current       bigint NOT NULL DEFAULT 0 CHECK (current >= 0),
				created_at    timestamptz NOT NULL DEFAULT NOW(),
				updated_at    timestamptz NOT NULL DEFAULT NOW(),
				CONSTRAINT number_series_id_chars CHECK (id !~ '[/=?&%]')
			)`)
		return err
	},
	2025010102: func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS numbering_configs (
				id             uuid PRIMARY KEY,
				document_type  text NOT NULL,
				name           text NOT NULL DEFAULT '',
				numbering_mode text NOT NULL DEFAULT 'Automatic'
					CHECK (numbering_mode IN ('Automatic', 'Manual')),
				series_id      text NOT NULL DEFAULT '',
				is_active      boolean NOT NULL DEFAULT true,
				display_prefix text NOT NULL DEFAULT '',
				start          bigint NOT NULL DEFAULT 1001,
				pad_width      integer NOT NULL DEFAULT 4,
				created_at     timestamptz NOT NULL DEFAULT NOW(),
				updated_at     timestamptz NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS numbering_configs_type_idx
				ON numbering_configs (document_type, created_at)`)
		return err
	},
	2025010103: func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS accounting_settings (
				id                       smallint PRIMARY KEY CHECK (id = 1),
				invoice_number_prefix    text NOT NULL DEFAULT '',
				current_invoice_number   bigint NOT NULL DEFAULT 1,
				manual_invoice_numbering boolean NOT NULL DEFAULT false,
				updated_at               timestamptz NOT NULL DEFAULT NOW()
			);
			INSERT INTO accounting_settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
		return err
	},
	2025010104: func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS sales_documents (
				id            uuid PRIMARY KEY,
				version       integer NOT NULL DEFAULT 1,
				document_type text NOT NULL,
				number        text NOT NULL,
				number_series text NOT NULL DEFAULT '',
				number_source text NOT NULL DEFAULT '',
				date          timestamptz NOT NULL,
				comment       text NOT NULL DEFAULT '',
				party         text NOT NULL,
				currency      char(3) NOT NULL,
				grand_total   numeric(18, 2) NOT NULL DEFAULT 0,
				created_at    timestamptz NOT NULL DEFAULT NOW(),
				updated_at    timestamptz NOT NULL DEFAULT NOW(),
				created_by    text NOT NULL DEFAULT '',
				CONSTRAINT sales_documents_type_number_key UNIQUE (document_type, number)
			);
			CREATE TABLE IF NOT EXISTS sales_document_lines (
				line_id     uuid PRIMARY KEY,
				document_id uuid NOT NULL REFERENCES sales_documents (id) ON DELETE CASCADE,
				line_no     integer NOT NULL,
				item_code   text NOT NULL,
				item_name   text NOT NULL DEFAULT '',
				quantity    numeric(18, 6) NOT NULL,
				rate        numeric(18, 6) NOT NULL,
				amount      numeric(18, 2) NOT NULL
			);
			CREATE INDEX IF NOT EXISTS sales_document_lines_doc_idx
				ON sales_document_lines (document_id, line_no)`)
		return err
	},
	2025010105: func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS sys_audit (
				id                 uuid PRIMARY KEY,
				entity_type        text NOT NULL,
				entity_id          text NOT NULL,
				action             text NOT NULL,
				operator           text NOT NULL DEFAULT '',
				changes            jsonb,
				changes_compressed bytea,
				compression_algo   text NOT NULL DEFAULT 'none',
				created_at         timestamptz NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS sys_audit_entity_idx
				ON sys_audit (entity_type, entity_id, created_at DESC)`)
		return err
	},
	2025010106: func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS sys_idempotency (
				idempotency_key       text PRIMARY KEY,
				operator              text NOT NULL DEFAULT '',
				operation             text NOT NULL,
				status                text NOT NULL,
				request_hash          text NOT NULL,
				response              bytea,
				response_status       integer NOT NULL DEFAULT 0,
				response_content_type text NOT NULL DEFAULT '',
				created_at            timestamptz NOT NULL,
				updated_at            timestamptz NOT NULL,
				expires_at            timestamptz NOT NULL
			);
			CREATE INDEX IF NOT EXISTS sys_idempotency_expires_idx ON sys_idempotency (expires_at)`)
		return err
	},
	2025010107: func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS sys_outbox (
				id            uuid PRIMARY KEY,
				event_type    text NOT NULL,
				document_type text NOT NULL DEFAULT '',
				payload       jsonb NOT NULL,
				status        text NOT NULL,
				retry_count   integer NOT NULL DEFAULT 0,
				last_error    text,
				next_retry_at timestamptz,
				created_at    timestamptz NOT NULL,
				published_at  timestamptz
			);
			CREATE INDEX IF NOT EXISTS sys_outbox_pending_idx
				ON sys_outbox (created_at) WHERE status = 'pending'`)
		return err
	},
}

// Migrate applies pending migrations in one transaction and returns the
// versions it applied.
func Migrate(ctx context.Context, pool *Pool) ([]int64, error) {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    bigint PRIMARY KEY,
		applied_at timestamptz NOT NULL DEFAULT NOW()
	)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, pool)
	if err != nil {
		return nil, err
	}

	pending := PendingVersions(applied)
	if len(pending) == 0 {
		return nil, nil
	}

	t, err := pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = t.Rollback(ctx) }()

	for _, version := range pending {
		if err := Migrations[version](ctx, t); err != nil {
			return nil, fmt.Errorf("migration %d: %w", version, err)
		}
		if _, err := t.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			return nil, fmt.Errorf("record migration %d: %w", version, err)
		}
		logger.Info(ctx, "migration applied", "version", version)
	}

	if err := t.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit migration: %w", err)
	}
	return pending, nil
}

func appliedVersions(ctx context.Context, pool *Pool) (map[int64]bool, error) {
	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query schema_migrations: %w", err)
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan schema_migrations: %w", err)
	}
	applied := make(map[int64]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// PendingVersions returns the registered versions not in applied, ascending.
func PendingVersions(applied map[int64]bool) []int64 {
	var pending []int64
	for v := range Migrations {
		if !applied[v] {
			pending = append(pending, v)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i] < pending[j] })
	return pending
}
