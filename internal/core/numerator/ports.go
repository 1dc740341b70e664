package numerator

import (
	"context"
	"time"

	"docseries/internal/core/id"
)

// SeriesStore persists number series.
type SeriesStore interface {
	// GetSeries loads a series; unknown ids yield an error wrapping ErrSeriesNotFound.
	GetSeries(ctx context.Context, seriesID string) (*Series, error)
	SeriesExists(ctx context.Context, seriesID string) (bool, error)
	// CreateSeries inserts a series; duplicates yield an error wrapping ErrSeriesExists.
	CreateSeries(ctx context.Context, s *Series) error
	// UpdateSeriesSettings changes start and padding. Current is never touched here.
	UpdateSeriesSettings(ctx context.Context, seriesID string, start int64, padWidth int) error
	// AdvanceCurrent atomically sets current = max(current, value) and
	// returns the values before and after the write.
	AdvanceCurrent(ctx context.Context, seriesID string, value int64) (before, after int64, err error)
	ListSeries(ctx context.Context) ([]*Series, error)
}

// ConfigStore persists module configurations.
type ConfigStore interface {
	// ListConfigs returns the configurations of a type in creation order.
	ListConfigs(ctx context.Context, documentType string) ([]*ModuleConfig, error)
	ListAllConfigs(ctx context.Context) ([]*ModuleConfig, error)
	GetConfig(ctx context.Context, configID id.ID) (*ModuleConfig, error)
	// SaveConfig inserts or updates by ID.
	SaveConfig(ctx context.Context, cfg *ModuleConfig) error
	// DeactivateSiblings clears is_active on every configuration of the type except keep.
	DeactivateSiblings(ctx context.Context, documentType string, keep id.ID) (int64, error)
}

// DocumentIndex answers questions about numbers already stored for a document type.
type DocumentIndex interface {
	NumberExists(ctx context.Context, documentType, number string) (bool, error)
	// ListNumbers returns stored numbers of the type starting with prefix.
	ListNumbers(ctx context.Context, documentType, prefix string) ([]string, error)
}

// SettingsStore persists the fallback counter.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*AccountingSettings, error)
	SaveSettings(ctx context.Context, s *AccountingSettings) error
	// NextInvoiceNumber atomically returns prefix+current and increments current.
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// ExistsFunc checks a candidate number against the target document storage.
type ExistsFunc func(ctx context.Context, number string) (bool, error)

// Locker serializes reload-compute-write on one series.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// Event names.
const (
	EventDocumentNumbered   = "document.numbered"
	EventSequenceReconciled = "sequence.reconciled"
)

// Event is a best-effort notification about numbering activity.
type Event struct {
	Name         string    `json:"name"`
	DocumentType string    `json:"documentType"`
	Number       string    `json:"number,omitempty"`
	SeriesID     string    `json:"seriesId,omitempty"`
	Source       Source    `json:"source,omitempty"`
	From         int64     `json:"from,omitempty"`
	To           int64     `json:"to,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Publisher delivers events. Failures never affect numbering.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// AuditAction describes an administrative change.
type AuditAction string

const (
	AuditSeriesCreated  AuditAction = "series_created"
	AuditSeriesUpdated  AuditAction = "series_updated"
	AuditConfigCreated  AuditAction = "config_created"
	AuditConfigUpdated  AuditAction = "config_updated"
	AuditConfigRebound  AuditAction = "config_rebound"
	AuditSettingsUpdate AuditAction = "settings_updated"
)

// AuditRecord captures one administrative change with before/after snapshots.
type AuditRecord struct {
	EntityType string
	EntityID   string
	Action     AuditAction
	Before     any
	After      any
	Operator   string
	At         time.Time
}

// AuditLog stores administrative changes.
type AuditLog interface {
	Record(ctx context.Context, r AuditRecord) error
}

// Recorder receives numbering metrics.
type Recorder interface {
	Allocated(documentType string, source Source)
	Conflict(documentType string)
	Exhausted(documentType string)
	Reconciled(result string)
}

// Reconciliation results reported to Recorder.
const (
	ReconcileAdvanced  = "advanced"
	ReconcileUnchanged = "unchanged"
	ReconcileSkipped   = "skipped"
	ReconcileFailed    = "failed"
)

// NopRecorder discards metrics.
type NopRecorder struct{}

func (NopRecorder) Allocated(string, Source) {}
func (NopRecorder) Conflict(string)          {}
func (NopRecorder) Exhausted(string)         {}
func (NopRecorder) Reconciled(string)        {}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// NopAuditLog discards audit records.
type NopAuditLog struct{}

func (NopAuditLog) Record(context.Context, AuditRecord) error { return nil }
