package numbering

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
	"docseries/internal/core/tx"
	"docseries/pkg/logger"
)

// ServiceConfig wires a Service. Every collaborator is passed explicitly.
type ServiceConfig struct {
	Resolver  *Resolver
	Allocator *Allocator
	Series    numerator.SeriesStore
	Documents numerator.DocumentIndex
	Settings  numerator.SettingsStore
	Publisher numerator.Publisher // defaults to NopPublisher
	Recorder  numerator.Recorder  // defaults to NopRecorder
	TxManager tx.Manager          // defaults to tx.Nop
}

// Service is the numbering API used by document services. It drives a
// document through preview, save-time reservation and post-save reconciliation.
type Service struct {
	resolver  *Resolver
	allocator *Allocator
	series    numerator.SeriesStore
	documents numerator.DocumentIndex
	settings  numerator.SettingsStore
	publisher numerator.Publisher
	recorder  numerator.Recorder
	txManager tx.Manager
}

// Ensure compile-time interface compliance.
var _ numerator.Numberer = (*Service)(nil)

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		resolver:  cfg.Resolver,
		allocator: cfg.Allocator,
		series:    cfg.Series,
		documents: cfg.Documents,
		settings:  cfg.Settings,
		publisher: cfg.Publisher,
		recorder:  cfg.Recorder,
		txManager: cfg.TxManager,
	}
	if s.txManager == nil {
		s.txManager = tx.Nop{}
	}
	if s.publisher == nil {
		s.publisher = numerator.NopPublisher{}
	}
	if s.recorder == nil {
		s.recorder = numerator.NopRecorder{}
	}
	return s
}

// Preview implements numerator.Numberer. Failures are logged and yield "".
func (s *Service) Preview(ctx context.Context, documentType string) string {
	cfg, err := s.resolver.ResolveActive(ctx, documentType)
	if err != nil {
		if !apperror.IsConfigurationMissing(err) {
			logger.Warn(ctx, "preview: resolve configuration failed", "document_type", documentType, "error", err)
		}
		return ""
	}
	if !cfg.Automatic() || !cfg.HasSeries() {
		return ""
	}

	number, err := s.allocator.Preview(ctx, cfg.SeriesID)
	if err != nil {
		logger.Warn(ctx, "preview failed", "document_type", documentType, "series", cfg.SeriesID, "error", err)
		return ""
	}
	return number
}

// PreviewDocument moves a new document to Previewed when a preview exists.
func (s *Service) PreviewDocument(ctx context.Context, doc numerator.Numbered) {
	number := s.Preview(ctx, doc.GetDocumentType())
	if number == "" {
		return
	}
	if err := doc.MarkPreviewed(number); err != nil {
		logger.Warn(ctx, "preview: document rejected number", "number", number, "error", err)
	}
}

// Reserve implements numerator.Numberer.
//
// Manual mode requires proposed and never touches a series. Automatic mode
// keeps proposed when it is still free and allocates otherwise. Without a
// configuration or a bound series the company-wide fallback counter is used.
func (s *Service) Reserve(ctx context.Context, documentType, proposed string) (numerator.Reservation, error) {
	proposed = strings.TrimSpace(proposed)
	exists := s.existsFunc(documentType)

	cfg, err := s.resolver.ResolveActive(ctx, documentType)
	if err != nil {
		if !apperror.IsConfigurationMissing(err) {
			return numerator.Reservation{}, err
		}
		logger.Debug(ctx, "no numbering configuration, using fallback counter", "document_type", documentType)
		return s.reserveFallback(ctx, documentType, proposed, exists)
	}

	if !cfg.Automatic() {
		if proposed == "" {
			return numerator.Reservation{}, apperror.NewValidation("document number is required when numbering is manual").
				WithDetail("field", "number").
				WithDetail("document_type", documentType)
		}
		s.recorder.Allocated(documentType, numerator.SourceManual)
		return numerator.Reservation{
			DocumentType: documentType,
			Number:       proposed,
			Mode:         numerator.ModeManual,
			Source:       numerator.SourceManual,
		}, nil
	}

	if !cfg.HasSeries() {
		return s.reserveFallback(ctx, documentType, proposed, exists)
	}

	if proposed != "" {
		taken, err := exists(ctx, proposed)
		if err != nil {
			return numerator.Reservation{}, apperror.NewDatabase("check number", err).
				WithDetail("document_type", documentType)
		}
		if !taken {
			s.recorder.Allocated(documentType, numerator.SourceKept)
			return numerator.Reservation{
				DocumentType: documentType,
				Number:       proposed,
				SeriesID:     cfg.SeriesID,
				Mode:         numerator.ModeAutomatic,
				Source:       numerator.SourceKept,
			}, nil
		}
		logger.Debug(ctx, "proposed number taken, allocating", "document_type", documentType, "number", proposed)
	}

	number, _, err := s.allocator.AllocateNext(ctx, cfg.SeriesID, documentType, exists)
	if err != nil {
		return numerator.Reservation{}, err
	}
	s.recorder.Allocated(documentType, numerator.SourceAllocated)
	return numerator.Reservation{
		DocumentType: documentType,
		Number:       number,
		SeriesID:     cfg.SeriesID,
		Mode:         numerator.ModeAutomatic,
		Source:       numerator.SourceAllocated,
	}, nil
}

func (s *Service) reserveFallback(ctx context.Context, documentType, proposed string, exists numerator.ExistsFunc) (numerator.Reservation, error) {
	settings, err := s.settings.GetSettings(ctx)
	if err != nil {
		return numerator.Reservation{}, apperror.NewDatabase("get settings", err)
	}

	if proposed != "" {
		taken, err := exists(ctx, proposed)
		if err != nil {
			return numerator.Reservation{}, apperror.NewDatabase("check number", err).
				WithDetail("document_type", documentType)
		}
		if !taken {
			s.recorder.Allocated(documentType, numerator.SourceKept)
			return numerator.Reservation{
				DocumentType: documentType,
				Number:       proposed,
				Mode:         numerator.ModeAutomatic,
				Source:       numerator.SourceKept,
			}, nil
		}
		if settings.ManualInvoiceNumbering {
			return numerator.Reservation{}, apperror.NewDuplicate(documentType, "number", proposed)
		}
	}

	if settings.ManualInvoiceNumbering {
		return numerator.Reservation{}, apperror.NewValidation("document number is required when numbering is manual").
			WithDetail("field", "number").
			WithDetail("document_type", documentType)
	}

	number, attempts, err := numerator.Retry(ctx, numerator.RetryPolicy{
		MaxAttempts: s.allocator.MaxAttempts(),
		IsConflict:  numerator.IsNumberTaken,
	}, func(ctx context.Context, attempt int) (string, error) {
		number, err := s.settings.NextInvoiceNumber(ctx)
		if err != nil {
			return "", fmt.Errorf("next fallback number: %w", err)
		}
		taken, err := exists(ctx, number)
		if err != nil {
			return "", fmt.Errorf("check %s: %w", number, err)
		}
		if taken {
			s.recorder.Conflict(documentType)
			return "", numerator.ErrNumberTaken
		}
		return number, nil
	})
	if err != nil {
		if errors.Is(err, numerator.ErrRetriesExhausted) {
			s.recorder.Exhausted(documentType)
			return numerator.Reservation{}, apperror.NewSequenceExhausted(documentType, attempts).WithCause(err)
		}
		return numerator.Reservation{}, apperror.NewDatabase("fallback number", err)
	}

	s.recorder.Allocated(documentType, numerator.SourceFallback)
	return numerator.Reservation{
		DocumentType: documentType,
		Number:       number,
		Mode:         numerator.ModeAutomatic,
		Source:       numerator.SourceFallback,
	}, nil
}

// Reconcile implements numerator.Numberer. It never fails: the document is
// already stored, so problems are only logged.
func (s *Service) Reconcile(ctx context.Context, documentType, number string) {
	err := s.TryReconcile(ctx, documentType, number)
	switch {
	case err == nil:
	case apperror.IsSoft(err):
		logger.Debug(ctx, "reconciliation skipped", "document_type", documentType, "number", number, "reason", err)
	default:
		s.recorder.Reconciled(numerator.ReconcileFailed)
		logger.Warn(ctx, "reconciliation failed", "document_type", documentType, "number", number, "error", err)
	}
}

// TryReconcile folds number back into the active series of documentType and
// reports why it did not when that is the case (RECONCILIATION_SKIPPED).
func (s *Service) TryReconcile(ctx context.Context, documentType, number string) error {
	cfg, err := s.resolver.ResolveActive(ctx, documentType)
	if err != nil {
		if apperror.IsConfigurationMissing(err) {
			return s.skip(documentType, number, "no numbering configuration")
		}
		return err
	}
	if !cfg.Automatic() {
		return s.skip(documentType, number, "manual numbering")
	}
	if !cfg.HasSeries() {
		return s.skip(documentType, number, "no bound series")
	}

	series, err := s.series.GetSeries(ctx, cfg.SeriesID)
	if err != nil {
		if errors.Is(err, numerator.ErrSeriesNotFound) {
			return s.skip(documentType, number, "series "+cfg.SeriesID+" not found")
		}
		return storeError("get series", cfg.SeriesID, err)
	}

	observed, ok := series.Suffix(number)
	if !ok {
		return s.skip(documentType, number, "number does not match series "+series.ID)
	}

	before, after, err := s.allocator.AdvanceIfGreater(ctx, series.ID, observed)
	if err != nil {
		return err
	}
	if after > before {
		s.recorder.Reconciled(numerator.ReconcileAdvanced)
		s.publish(ctx, numerator.Event{
			Name:         numerator.EventSequenceReconciled,
			DocumentType: documentType,
			Number:       number,
			SeriesID:     series.ID,
			From:         before,
			To:           after,
		})
	} else {
		s.recorder.Reconciled(numerator.ReconcileUnchanged)
	}
	return nil
}

// ReconcileStored reconciles a number reported by a caller outside the save
// path. A number no stored document carries is skipped with reason
// "not stored", so it cannot push the counter forward.
func (s *Service) ReconcileStored(ctx context.Context, documentType, number string) error {
	stored, err := s.documents.NumberExists(ctx, documentType, number)
	if err != nil {
		return apperror.NewDatabase("check number", err).WithDetail("document_type", documentType)
	}
	if !stored {
		return s.skip(documentType, number, "not stored")
	}
	return s.TryReconcile(ctx, documentType, number)
}

func (s *Service) skip(documentType, number, reason string) error {
	s.recorder.Reconciled(numerator.ReconcileSkipped)
	return apperror.NewReconciliationSkipped(documentType, number, reason)
}

// Save implements numerator.Numberer.
//
// The number is reserved, then persist runs together with the
// document.numbered event in one transaction. When storage rejects the number
// as taken, an automatic reservation is redone from the allocator; manual
// numbers fail with DUPLICATE_ENTRY. Reconciliation runs after a successful
// persist and cannot fail the save.
func (s *Service) Save(ctx context.Context, doc numerator.Numbered, persist func(ctx context.Context) error) (numerator.Reservation, error) {
	documentType := doc.GetDocumentType()
	proposed := doc.GetNumber()

	res, attempts, err := numerator.Retry(ctx, numerator.RetryPolicy{
		MaxAttempts: s.allocator.MaxAttempts(),
		IsConflict:  isRetryableConflict,
	}, func(ctx context.Context, attempt int) (numerator.Reservation, error) {
		// The proposal is offered again on every attempt: once storage holds
		// it, Reserve allocates in Automatic mode and rejects it otherwise.
		r, err := s.Reserve(ctx, documentType, proposed)
		if err != nil {
			return numerator.Reservation{}, err
		}
		if err := doc.MarkReserved(r); err != nil {
			return numerator.Reservation{}, err
		}
		err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := persist(ctx); err != nil {
				return err
			}
			if err := s.publisher.Publish(ctx, numberedEvent(r)); err != nil {
				return fmt.Errorf("record %s event: %w", numerator.EventDocumentNumbered, err)
			}
			return nil
		})
		if err != nil {
			if numerator.IsNumberTaken(err) {
				if r.Source == numerator.SourceManual {
					return numerator.Reservation{}, apperror.NewDuplicate(documentType, "number", r.Number).WithCause(err)
				}
				s.recorder.Conflict(documentType)
				logger.Debug(ctx, "number rejected by storage, reserving again",
					"document_type", documentType, "number", r.Number, "attempt", attempt+1)
			}
			return numerator.Reservation{}, err
		}
		return r, nil
	})
	if err != nil {
		if errors.Is(err, numerator.ErrRetriesExhausted) {
			s.recorder.Exhausted(documentType)
			return numerator.Reservation{}, apperror.NewSequenceExhausted(documentType, attempts).WithCause(err)
		}
		return numerator.Reservation{}, err
	}

	if err := doc.MarkPersisted(); err != nil {
		return res, err
	}

	if res.Mode == numerator.ModeAutomatic && res.Source != numerator.SourceFallback {
		s.Reconcile(ctx, documentType, res.Number)
	}

	return res, nil
}

// isRetryableConflict reports a raw storage conflict. Conflicts already
// turned into an AppError (a rejected manual number) are final.
func isRetryableConflict(err error) bool {
	return numerator.IsNumberTaken(err) && !apperror.IsAppError(err)
}

func numberedEvent(r numerator.Reservation) numerator.Event {
	return numerator.Event{
		Name:         numerator.EventDocumentNumbered,
		DocumentType: r.DocumentType,
		Number:       r.Number,
		SeriesID:     r.SeriesID,
		Source:       r.Source,
		OccurredAt:   time.Now().UTC(),
	}
}

func (s *Service) existsFunc(documentType string) numerator.ExistsFunc {
	return func(ctx context.Context, number string) (bool, error) {
		return s.documents.NumberExists(ctx, documentType, number)
	}
}

func (s *Service) publish(ctx context.Context, e numerator.Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		logger.Warn(ctx, "publish numbering event failed", "event", e.Name, "error", err)
	}
}
