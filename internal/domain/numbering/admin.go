package numbering

import (
	"context"
	"errors"
	"strings"
	"time"

	"docseries/internal/core/apperror"
	appctx "docseries/internal/core/context"
	"docseries/internal/core/id"
	"docseries/internal/core/numerator"
	"docseries/internal/core/tx"
	"docseries/pkg/logger"
)

// AdminConfig wires an Admin.
type AdminConfig struct {
	Series    numerator.SeriesStore
	Configs   numerator.ConfigStore
	Settings  numerator.SettingsStore
	Documents numerator.DocumentIndex
	Allocator *Allocator
	Audit     numerator.AuditLog // defaults to NopAuditLog
	TxManager tx.Manager         // defaults to tx.Nop
}

// Admin implements the administrative side of numbering: series and
// configuration management, default seeding, resync and diagnostics.
type Admin struct {
	series    numerator.SeriesStore
	configs   numerator.ConfigStore
	settings  numerator.SettingsStore
	documents numerator.DocumentIndex
	allocator *Allocator
	resolver  *Resolver
	audit     numerator.AuditLog
	txm       tx.Manager
}

// NewAdmin creates an Admin.
func NewAdmin(cfg AdminConfig) *Admin {
	a := &Admin{
		series:    cfg.Series,
		configs:   cfg.Configs,
		settings:  cfg.Settings,
		documents: cfg.Documents,
		allocator: cfg.Allocator,
		resolver:  NewResolver(cfg.Configs),
		audit:     cfg.Audit,
		txm:       cfg.TxManager,
	}
	if a.audit == nil {
		a.audit = numerator.NopAuditLog{}
	}
	if a.txm == nil {
		a.txm = tx.Nop{}
	}
	return a
}

// SeriesInput describes a series to create. Zero values take defaults;
// an empty ID is derived from the document type.
type SeriesInput struct {
	ID           string
	DocumentType string
	Start        int64
	PadWidth     *int
}

// CreateSeries creates an unstarted series.
func (a *Admin) CreateSeries(ctx context.Context, in SeriesInput) (*numerator.Series, error) {
	var created *numerator.Series
	err := a.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		s, err := a.createSeries(ctx, in)
		if err != nil {
			return err
		}
		created = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (a *Admin) createSeries(ctx context.Context, in SeriesInput) (*numerator.Series, error) {
	seriesID := strings.TrimSpace(in.ID)
	if seriesID == "" {
		derived, err := numerator.DeriveSeriesID(ctx, numerator.DefaultSeriesPrefix(in.DocumentType), a.series.SeriesExists)
		if err != nil {
			return nil, err
		}
		seriesID = derived
	}

	start := in.Start
	if start == 0 {
		start = numerator.DefaultStart
	}
	padWidth := numerator.DefaultPadWidth
	if in.PadWidth != nil {
		padWidth = *in.PadWidth
	}

	s, err := numerator.NewSeries(seriesID, in.DocumentType, start, padWidth)
	if err != nil {
		return nil, err
	}
	if err := a.series.CreateSeries(ctx, s); err != nil {
		if errors.Is(err, numerator.ErrSeriesExists) {
			return nil, apperror.NewDuplicate("number series", "id", seriesID)
		}
		return nil, storeError("create series", seriesID, err)
	}

	a.record(ctx, numerator.AuditRecord{
		EntityType: "number_series",
		EntityID:   s.ID,
		Action:     numerator.AuditSeriesCreated,
		After:      s,
	})
	logger.Info(ctx, "number series created", "series", s.ID, "document_type", s.DocumentType, "start", s.Start)
	return s, nil
}

// GetSeries returns one series.
func (a *Admin) GetSeries(ctx context.Context, seriesID string) (*numerator.Series, error) {
	s, err := a.series.GetSeries(ctx, seriesID)
	if err != nil {
		return nil, storeError("get series", seriesID, err)
	}
	return s, nil
}

// ListSeries returns every series.
func (a *Admin) ListSeries(ctx context.Context) ([]*numerator.Series, error) {
	list, err := a.series.ListSeries(ctx)
	if err != nil {
		return nil, apperror.NewDatabase("list series", err)
	}
	return list, nil
}

// ConfigInput describes a configuration change. A nil ID creates a new
// configuration; nil pointers leave the current value (or the default) in place.
type ConfigInput struct {
	ID            id.ID
	DocumentType  string
	Name          string
	Mode          numerator.Mode
	IsActive      *bool
	DisplayPrefix *string
	Start         *int64
	PadWidth      *int
}

// SetConfiguration creates or updates a configuration.
//
// A new configuration, or a changed display prefix, creates a fresh series
// and rebinds to it; the previous series is left untouched so historical
// numbers stay valid. Otherwise start and padding are synced to the bound
// series. Activating a configuration deactivates the other configurations
// of the same document type.
func (a *Admin) SetConfiguration(ctx context.Context, in ConfigInput) (*numerator.ModuleConfig, error) {
	var saved *numerator.ModuleConfig
	err := a.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		cfg, before, err := a.loadForUpdate(ctx, in)
		if err != nil {
			return err
		}
		if err := applyConfigInput(cfg, in); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		created := before == nil
		rebind := created || !cfg.HasSeries() ||
			numerator.NormalizePrefix(before.DisplayPrefix) != numerator.NormalizePrefix(cfg.DisplayPrefix)

		if rebind {
			base := cfg.SeriesPrefix()
			seriesID, err := numerator.DeriveSeriesID(ctx, base, a.series.SeriesExists)
			if err != nil {
				return err
			}
			if _, err := a.createSeries(ctx, SeriesInput{
				ID:           seriesID,
				DocumentType: cfg.DocumentType,
				Start:        cfg.Start,
				PadWidth:     &cfg.PadWidth,
			}); err != nil {
				return err
			}
			previous := cfg.SeriesID
			cfg.SeriesID = seriesID
			if !created && previous != "" {
				a.record(ctx, numerator.AuditRecord{
					EntityType: "numbering_config",
					EntityID:   cfg.ID.String(),
					Action:     numerator.AuditConfigRebound,
					Before:     map[string]string{"seriesId": previous},
					After:      map[string]string{"seriesId": seriesID},
				})
				logger.Info(ctx, "configuration rebound to new series",
					"document_type", cfg.DocumentType, "from", previous, "to", seriesID)
			}
		} else if before.Start != cfg.Start || before.PadWidth != cfg.PadWidth {
			if err := a.series.UpdateSeriesSettings(ctx, cfg.SeriesID, cfg.Start, cfg.PadWidth); err != nil {
				return storeError("sync series", cfg.SeriesID, err)
			}
			a.record(ctx, numerator.AuditRecord{
				EntityType: "number_series",
				EntityID:   cfg.SeriesID,
				Action:     numerator.AuditSeriesUpdated,
				Before:     map[string]any{"start": before.Start, "padWidth": before.PadWidth},
				After:      map[string]any{"start": cfg.Start, "padWidth": cfg.PadWidth},
			})
		}

		cfg.UpdatedAt = time.Now().UTC()
		if err := a.configs.SaveConfig(ctx, cfg); err != nil {
			return apperror.NewDatabase("save configuration", err).WithDetail("document_type", cfg.DocumentType)
		}

		if cfg.IsActive {
			n, err := a.configs.DeactivateSiblings(ctx, cfg.DocumentType, cfg.ID)
			if err != nil {
				return apperror.NewDatabase("deactivate configurations", err).WithDetail("document_type", cfg.DocumentType)
			}
			if n > 0 {
				logger.Info(ctx, "deactivated sibling configurations", "document_type", cfg.DocumentType, "count", n)
			}
		}

		action := numerator.AuditConfigUpdated
		if created {
			action = numerator.AuditConfigCreated
		}
		var beforeSnapshot any
		if before != nil {
			beforeSnapshot = before
		}
		a.record(ctx, numerator.AuditRecord{
			EntityType: "numbering_config",
			EntityID:   cfg.ID.String(),
			Action:     action,
			Before:     beforeSnapshot,
			After:      cfg,
		})

		saved = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// loadForUpdate returns the configuration to modify and a copy of its
// previous state (nil when creating).
func (a *Admin) loadForUpdate(ctx context.Context, in ConfigInput) (*numerator.ModuleConfig, *numerator.ModuleConfig, error) {
	if id.IsNil(in.ID) {
		if strings.TrimSpace(in.DocumentType) == "" {
			return nil, nil, apperror.NewValidation("document type is required").WithDetail("field", "documentType")
		}
		return numerator.NewModuleConfig(in.DocumentType), nil, nil
	}

	cfg, err := a.configs.GetConfig(ctx, in.ID)
	if err != nil {
		if errors.Is(err, numerator.ErrConfigNotFound) {
			return nil, nil, apperror.NewNotFound("numbering configuration", in.ID.String())
		}
		return nil, nil, apperror.NewDatabase("get configuration", err)
	}
	before := *cfg
	return cfg, &before, nil
}

func applyConfigInput(cfg *numerator.ModuleConfig, in ConfigInput) error {
	if in.DocumentType != "" && in.DocumentType != cfg.DocumentType {
		return apperror.NewValidation("document type of a configuration cannot change").
			WithDetail("field", "documentType")
	}
	if in.Name != "" {
		cfg.Name = in.Name
	}
	if in.Mode != "" {
		cfg.Mode = in.Mode
	}
	if in.IsActive != nil {
		cfg.IsActive = *in.IsActive
	}
	if in.DisplayPrefix != nil {
		cfg.DisplayPrefix = strings.TrimSpace(*in.DisplayPrefix)
	}
	if in.Start != nil {
		cfg.Start = *in.Start
	}
	if in.PadWidth != nil {
		cfg.PadWidth = *in.PadWidth
	}
	return nil
}

// ActiveConfiguration resolves the configuration used for a document type.
func (a *Admin) ActiveConfiguration(ctx context.Context, documentType string) (*numerator.ModuleConfig, error) {
	return a.resolver.ResolveActive(ctx, documentType)
}

// ListConfigurations returns configurations of one type, or all when documentType is empty.
func (a *Admin) ListConfigurations(ctx context.Context, documentType string) ([]*numerator.ModuleConfig, error) {
	var (
		list []*numerator.ModuleConfig
		err  error
	)
	if documentType == "" {
		list, err = a.configs.ListAllConfigs(ctx)
	} else {
		list, err = a.configs.ListConfigs(ctx, documentType)
	}
	if err != nil {
		return nil, apperror.NewDatabase("list configurations", err)
	}
	return list, nil
}

// SeedDefaults creates an automatic, active configuration for every seeded
// document type that has none yet. It returns the configurations it created.
func (a *Admin) SeedDefaults(ctx context.Context) ([]*numerator.ModuleConfig, error) {
	var created []*numerator.ModuleConfig
	for _, documentType := range numerator.SeededDocumentTypes() {
		existing, err := a.configs.ListConfigs(ctx, documentType)
		if err != nil {
			return created, apperror.NewDatabase("list configurations", err)
		}
		if len(existing) > 0 {
			logger.Debug(ctx, "configuration exists, skipping seed", "document_type", documentType)
			continue
		}
		cfg, err := a.SetConfiguration(ctx, ConfigInput{DocumentType: documentType, Mode: numerator.ModeAutomatic})
		if err != nil {
			return created, err
		}
		created = append(created, cfg)
	}
	return created, nil
}

// SettingsInput changes the fallback counter.
type SettingsInput struct {
	InvoiceNumberPrefix    *string
	CurrentInvoiceNumber   *int64
	ManualInvoiceNumbering *bool
}

// GetSettings returns the fallback counter settings.
func (a *Admin) GetSettings(ctx context.Context) (*numerator.AccountingSettings, error) {
	s, err := a.settings.GetSettings(ctx)
	if err != nil {
		return nil, apperror.NewDatabase("get settings", err)
	}
	return s, nil
}

// UpdateSettings changes the fallback counter settings.
func (a *Admin) UpdateSettings(ctx context.Context, in SettingsInput) (*numerator.AccountingSettings, error) {
	var saved *numerator.AccountingSettings
	err := a.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		s, err := a.settings.GetSettings(ctx)
		if err != nil {
			return apperror.NewDatabase("get settings", err)
		}
		before := *s
		if in.InvoiceNumberPrefix != nil {
			s.InvoiceNumberPrefix = *in.InvoiceNumberPrefix
		}
		if in.CurrentInvoiceNumber != nil {
			if *in.CurrentInvoiceNumber < 1 {
				return apperror.NewValidation("current invoice number must be at least 1").
					WithDetail("field", "currentInvoiceNumber")
			}
			s.CurrentInvoiceNumber = *in.CurrentInvoiceNumber
		}
		if in.ManualInvoiceNumbering != nil {
			s.ManualInvoiceNumbering = *in.ManualInvoiceNumbering
		}
		s.UpdatedAt = time.Now().UTC()
		if err := a.settings.SaveSettings(ctx, s); err != nil {
			return apperror.NewDatabase("save settings", err)
		}
		a.record(ctx, numerator.AuditRecord{
			EntityType: "accounting_settings",
			EntityID:   "default",
			Action:     numerator.AuditSettingsUpdate,
			Before:     &before,
			After:      s,
		})
		saved = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// record writes an audit record. Audit failures are logged only.
func (a *Admin) record(ctx context.Context, r numerator.AuditRecord) {
	if r.Operator == "" {
		r.Operator = appctx.GetOperator(ctx)
	}
	if r.At.IsZero() {
		r.At = time.Now().UTC()
	}
	if err := a.audit.Record(ctx, r); err != nil {
		logger.Warn(ctx, "audit record failed", "entity", r.EntityType, "id", r.EntityID, "error", err)
	}
}
