package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/apperror"
	"docseries/internal/core/numerator"
)

func TestService_PreviewWithoutConfiguration(t *testing.T) {
	h := newHarness(t, 0)
	assert.Equal(t, "", h.service.Preview(context.Background(), numerator.SalesOrder))
}

func TestService_PreviewManualMode(t *testing.T) {
	h := newHarness(t, 0)
	cfg := h.configure(t, numerator.SalesOrder, "SO")
	_, err := h.admin.SetConfiguration(context.Background(), ConfigInput{ID: cfg.ID, Mode: numerator.ModeManual})
	require.NoError(t, err)

	assert.Equal(t, "", h.service.Preview(context.Background(), numerator.SalesOrder))
}

func TestService_TwoPreviewsThenSave(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	doc1 := newInvoice(numerator.SalesInvoice)
	doc2 := newInvoice(numerator.SalesInvoice)
	h.service.PreviewDocument(ctx, doc1)
	h.service.PreviewDocument(ctx, doc2)
	assert.Equal(t, "INV-1001", doc1.Number)
	assert.Equal(t, "INV-1001", doc2.Number)
	assert.Equal(t, numerator.StatePreviewed, doc1.NumberingState())

	res1, err := h.service.Save(ctx, doc1, h.persistFunc(doc1))
	require.NoError(t, err)
	assert.Equal(t, "INV-1001", res1.Number)
	assert.Equal(t, numerator.SourceKept, res1.Source)
	assert.Equal(t, int64(1001), h.series(t, "INV-").Current)

	res2, err := h.service.Save(ctx, doc2, h.persistFunc(doc2))
	require.NoError(t, err)
	assert.Equal(t, "INV-1002", res2.Number)
	assert.Equal(t, numerator.SourceAllocated, res2.Source)
	assert.Equal(t, int64(1002), h.series(t, "INV-").Current)

	assert.Equal(t, numerator.StatePersisted, doc2.NumberingState())
	assert.Equal(t, "INV-", doc2.NumberSeries)
	assert.Equal(t, "INV-1003", h.service.Preview(ctx, numerator.SalesInvoice))
}

func TestService_ReserveKeepsFreeProposal(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")

	res, err := h.service.Reserve(context.Background(), numerator.SalesInvoice, "INV-2000")
	require.NoError(t, err)

	assert.Equal(t, "INV-2000", res.Number)
	assert.Equal(t, numerator.SourceKept, res.Source)
	assert.Equal(t, int64(0), h.series(t, "INV-").Current)
}

func TestService_ReserveManual(t *testing.T) {
	h := newHarness(t, 0)
	cfg := h.configure(t, numerator.SalesOrder, "SO")
	ctx := context.Background()
	_, err := h.admin.SetConfiguration(ctx, ConfigInput{ID: cfg.ID, Mode: numerator.ModeManual})
	require.NoError(t, err)

	_, err = h.service.Reserve(ctx, numerator.SalesOrder, "")
	assert.True(t, apperror.IsValidation(err))

	res, err := h.service.Reserve(ctx, numerator.SalesOrder, "CUSTOM-7")
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM-7", res.Number)
	assert.Equal(t, numerator.SourceManual, res.Source)
	assert.Equal(t, int64(0), h.series(t, cfg.SeriesID).Current)
}

func TestService_ReserveFallback(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	prefix := "ACC-"
	_, err := h.admin.UpdateSettings(ctx, SettingsInput{InvoiceNumberPrefix: &prefix})
	require.NoError(t, err)

	first, err := h.service.Reserve(ctx, numerator.SalesQuote, "")
	require.NoError(t, err)
	assert.Equal(t, "ACC-1", first.Number)
	assert.Equal(t, numerator.SourceFallback, first.Source)

	h.store.InsertNumber(numerator.SalesQuote, "ACC-2")
	second, err := h.service.Reserve(ctx, numerator.SalesQuote, "")
	require.NoError(t, err)
	assert.Equal(t, "ACC-3", second.Number)

	settings, err := h.store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), settings.CurrentInvoiceNumber)
}

func TestService_ReserveFallbackManualSettings(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	manual := true
	_, err := h.admin.UpdateSettings(ctx, SettingsInput{ManualInvoiceNumbering: &manual})
	require.NoError(t, err)

	_, err = h.service.Reserve(ctx, numerator.SalesQuote, "")
	assert.True(t, apperror.IsValidation(err))

	h.store.InsertNumber(numerator.SalesQuote, "Q-1")
	_, err = h.service.Reserve(ctx, numerator.SalesQuote, "Q-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	res, err := h.service.Reserve(ctx, numerator.SalesQuote, "Q-2")
	require.NoError(t, err)
	assert.Equal(t, "Q-2", res.Number)
}

func TestService_TryReconcile(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	require.NoError(t, h.service.TryReconcile(ctx, numerator.SalesInvoice, "INV-1500"))
	assert.Equal(t, int64(1500), h.series(t, "INV-").Current)
	assert.Contains(t, h.publisher.names(), numerator.EventSequenceReconciled)

	require.NoError(t, h.service.TryReconcile(ctx, numerator.SalesInvoice, "INV-1100"))
	assert.Equal(t, int64(1500), h.series(t, "INV-").Current)

	err := h.service.TryReconcile(ctx, numerator.SalesInvoice, "INV-15A")
	assert.True(t, apperror.HasCode(err, apperror.CodeReconciliationSkipped))

	err = h.service.TryReconcile(ctx, numerator.SalesInvoice, "OTHER-9999")
	assert.True(t, apperror.IsSoft(err))
	assert.Equal(t, int64(1500), h.series(t, "INV-").Current)

	err = h.service.TryReconcile(ctx, numerator.SalesOrder, "SO-1")
	assert.True(t, apperror.HasCode(err, apperror.CodeReconciliationSkipped))

	assert.Equal(t, 1, h.recorder.reconciled[numerator.ReconcileAdvanced])
	assert.Equal(t, 1, h.recorder.reconciled[numerator.ReconcileUnchanged])
	assert.Equal(t, 3, h.recorder.reconciled[numerator.ReconcileSkipped])
}

func TestService_ReconcileStoredSkipsUnknownNumber(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	err := h.service.ReconcileStored(ctx, numerator.SalesInvoice, "INV-999999")
	assert.True(t, apperror.HasCode(err, apperror.CodeReconciliationSkipped))
	assert.Equal(t, int64(0), h.series(t, "INV-").Current)

	h.store.InsertNumber(numerator.SalesInvoice, "INV-1040")
	require.NoError(t, h.service.ReconcileStored(ctx, numerator.SalesInvoice, "INV-1040"))
	assert.Equal(t, int64(1040), h.series(t, "INV-").Current)
}

func TestService_ReconcileSkipsManualMode(t *testing.T) {
	h := newHarness(t, 0)
	cfg := h.configure(t, numerator.SalesOrder, "SO")
	ctx := context.Background()
	_, err := h.admin.SetConfiguration(ctx, ConfigInput{ID: cfg.ID, Mode: numerator.ModeManual})
	require.NoError(t, err)

	h.service.Reconcile(ctx, numerator.SalesOrder, "SO-5000")
	assert.Equal(t, int64(0), h.series(t, "SO-").Current)
}

func TestService_SaveRetriesWhenStorageRejectsNumber(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	doc := newInvoice(numerator.SalesInvoice)
	calls := 0
	persist := func(ctx context.Context) error {
		calls++
		if calls == 1 {
			// Another writer stores the same number between check and insert.
			h.store.InsertNumber(numerator.SalesInvoice, doc.Number)
		}
		return h.store.Create(ctx, doc)
	}

	res, err := h.service.Save(ctx, doc, persist)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "INV-1002", res.Number)
	assert.Equal(t, numerator.SourceAllocated, res.Source)
	assert.Equal(t, int64(1002), h.series(t, "INV-").Current)
	assert.GreaterOrEqual(t, h.recorder.conflicts, 1)
}

func TestService_SaveManualDuplicate(t *testing.T) {
	h := newHarness(t, 0)
	cfg := h.configure(t, numerator.SalesOrder, "SO")
	ctx := context.Background()
	_, err := h.admin.SetConfiguration(ctx, ConfigInput{ID: cfg.ID, Mode: numerator.ModeManual})
	require.NoError(t, err)
	h.store.InsertNumber(numerator.SalesOrder, "PO-77")

	doc := newInvoice(numerator.SalesOrder)
	doc.Number = "PO-77"
	_, err = h.service.Save(ctx, doc, h.persistFunc(doc))

	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestService_SaveManualDuplicateIsNotRetried(t *testing.T) {
	h := newHarness(t, 0)
	cfg := h.configure(t, numerator.SalesOrder, "SO")
	ctx := context.Background()
	_, err := h.admin.SetConfiguration(ctx, ConfigInput{ID: cfg.ID, Mode: numerator.ModeManual})
	require.NoError(t, err)

	doc := newInvoice(numerator.SalesOrder)
	doc.Number = "PO-77"
	calls := 0
	persist := func(ctx context.Context) error {
		calls++
		h.store.InsertNumber(numerator.SalesOrder, "PO-77")
		return h.store.Create(ctx, doc)
	}
	_, err = h.service.Save(ctx, doc, persist)

	assert.Equal(t, 1, calls)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	assert.False(t, apperror.IsValidation(err))
	assert.Equal(t, int64(0), h.series(t, "SO-").Current)
}

func TestService_SaveFallbackManualSettingsDuplicate(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	manual := true
	_, err := h.admin.UpdateSettings(ctx, SettingsInput{ManualInvoiceNumbering: &manual})
	require.NoError(t, err)

	doc := newInvoice(numerator.SalesQuote)
	doc.Number = "Q-9"
	calls := 0
	persist := func(ctx context.Context) error {
		calls++
		if calls == 1 {
			// Another writer stores the same number between check and insert.
			h.store.InsertNumber(numerator.SalesQuote, "Q-9")
		}
		return h.store.Create(ctx, doc)
	}
	_, err = h.service.Save(ctx, doc, persist)

	assert.Equal(t, 1, calls)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	assert.False(t, apperror.IsValidation(err))
}

func TestService_SaveExhausted(t *testing.T) {
	h := newHarness(t, 2)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	doc := newInvoice(numerator.SalesInvoice)
	persist := func(context.Context) error {
		return fmt.Errorf("insert: %w", numerator.ErrNumberTaken)
	}

	_, err := h.service.Save(ctx, doc, persist)
	assert.True(t, apperror.IsSequenceExhausted(err))
}

func TestService_SavePropagatesPersistFailure(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	boom := errors.New("disk full")

	doc := newInvoice(numerator.SalesInvoice)
	_, err := h.service.Save(context.Background(), doc, func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, numerator.StateReserved, doc.NumberingState())
}

func TestService_SavePublishesEvent(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")

	doc := newInvoice(numerator.SalesInvoice)
	_, err := h.service.Save(context.Background(), doc, h.persistFunc(doc))
	require.NoError(t, err)

	assert.Contains(t, h.publisher.names(), numerator.EventDocumentNumbered)
}

type inTxKey struct{}

type spyTxManager struct{ runs int }

func (m *spyTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.runs++
	return fn(context.WithValue(ctx, inTxKey{}, true))
}

type txAwarePublisher struct {
	inTx []bool
	err  error
}

func (p *txAwarePublisher) Publish(ctx context.Context, _ numerator.Event) error {
	p.inTx = append(p.inTx, ctx.Value(inTxKey{}) == true)
	return p.err
}

func newTxService(h *harness, txm *spyTxManager, pub numerator.Publisher) *Service {
	return NewService(ServiceConfig{
		Resolver:  NewResolver(h.store),
		Allocator: h.allocator,
		Series:    h.store,
		Documents: h.store,
		Settings:  h.store,
		Publisher: pub,
		Recorder:  h.recorder,
		TxManager: txm,
	})
}

func TestService_SaveRecordsEventWithDocument(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	txm := &spyTxManager{}
	pub := &txAwarePublisher{}
	svc := newTxService(h, txm, pub)

	doc := newInvoice(numerator.SalesInvoice)
	persistedInTx := false
	_, err := svc.Save(context.Background(), doc, func(ctx context.Context) error {
		persistedInTx = ctx.Value(inTxKey{}) == true
		return h.store.Create(ctx, doc)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, txm.runs)
	assert.True(t, persistedInTx)
	assert.Equal(t, []bool{true}, pub.inTx)
}

func TestService_SaveFailsWhenEventCannotBeRecorded(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	boom := errors.New("outbox unavailable")
	svc := newTxService(h, &spyTxManager{}, &txAwarePublisher{err: boom})

	doc := newInvoice(numerator.SalesInvoice)
	_, err := svc.Save(context.Background(), doc, h.persistFunc(doc))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, numerator.StateReserved, doc.NumberingState())
}

func TestService_ConcurrentSavesYieldDistinctNumbers(t *testing.T) {
	h := newHarness(t, 0)
	h.configure(t, numerator.SalesInvoice, "INV")
	ctx := context.Background()

	const workers = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc := newInvoice(numerator.SalesInvoice)
			h.service.PreviewDocument(ctx, doc)
			res, err := h.service.Save(ctx, doc, h.persistFunc(doc))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers[res.Number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, workers)
	assert.GreaterOrEqual(t, h.series(t, "INV-").Current, int64(1000+workers))
}
