package numbering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/apperror"
	appctx "docseries/internal/core/context"
	"docseries/internal/core/numerator"
)

func TestAdmin_CreateSeriesDerivesID(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	first, err := h.admin.CreateSeries(ctx, SeriesInput{DocumentType: numerator.SalesOrder})
	require.NoError(t, err)
	second, err := h.admin.CreateSeries(ctx, SeriesInput{DocumentType: numerator.SalesOrder})
	require.NoError(t, err)

	assert.Equal(t, "SO-", first.ID)
	assert.Equal(t, "SO1-", second.ID)
	assert.Equal(t, numerator.DefaultStart, first.Start)
	assert.Equal(t, numerator.DefaultPadWidth, first.PadWidth)
	assert.False(t, first.Started())
}

func TestAdmin_CreateSeriesRejectsDuplicateAndBadID(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.admin.CreateSeries(ctx, SeriesInput{ID: "INV-", DocumentType: numerator.SalesInvoice})
	require.NoError(t, err)

	_, err = h.admin.CreateSeries(ctx, SeriesInput{ID: "INV-", DocumentType: numerator.SalesInvoice})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	_, err = h.admin.CreateSeries(ctx, SeriesInput{ID: "A?B", DocumentType: numerator.SalesInvoice})
	assert.True(t, apperror.IsValidation(err))
}

func TestAdmin_SetConfigurationRebindsOnPrefixChange(t *testing.T) {
	h := newHarness(t, 0)
	ctx := appctx.WithOperator(context.Background(), "alice")
	cfg := h.configure(t, numerator.SalesInvoice, "INV")
	require.Equal(t, "INV-", cfg.SeriesID)

	_, _, err := h.allocator.AdvanceIfGreater(ctx, "INV-", 1010)
	require.NoError(t, err)

	prefix := "BILL"
	updated, err := h.admin.SetConfiguration(ctx, ConfigInput{ID: cfg.ID, DisplayPrefix: &prefix})
	require.NoError(t, err)

	assert.Equal(t, "BILL-", updated.SeriesID)
	assert.Equal(t, int64(1010), h.series(t, "INV-").Current)
	assert.Equal(t, "BILL-1001", h.service.Preview(ctx, numerator.SalesInvoice))

	var rebound bool
	for _, r := range h.store.AuditRecords() {
		if r.Action == numerator.AuditConfigRebound {
			rebound = true
			assert.Equal(t, "alice", r.Operator)
		}
	}
	assert.True(t, rebound)
}

func TestAdmin_SetConfigurationSyncsStartAndPadding(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	cfg := h.configure(t, numerator.SalesInvoice, "INV")

	start, pad := int64(50), 6
	_, err := h.admin.SetConfiguration(ctx, ConfigInput{ID: cfg.ID, Start: &start, PadWidth: &pad})
	require.NoError(t, err)

	s := h.series(t, "INV-")
	assert.Equal(t, int64(50), s.Start)
	assert.Equal(t, 6, s.PadWidth)
	assert.Equal(t, "INV-000050", h.service.Preview(ctx, numerator.SalesInvoice))
}

func TestAdmin_ActivatingDeactivatesSiblings(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	first := h.configure(t, numerator.SalesOrder, "SO")
	second := h.configure(t, numerator.SalesOrder, "ORD")

	list, err := h.admin.ListConfigurations(ctx, numerator.SalesOrder)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsActive)
	assert.True(t, list[1].IsActive)

	active, err := h.admin.ActiveConfiguration(ctx, numerator.SalesOrder)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	yes := true
	_, err = h.admin.SetConfiguration(ctx, ConfigInput{ID: first.ID, IsActive: &yes})
	require.NoError(t, err)

	active, err = h.admin.ActiveConfiguration(ctx, numerator.SalesOrder)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
}

func TestAdmin_SetConfigurationValidation(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	_, err := h.admin.SetConfiguration(ctx, ConfigInput{})
	assert.True(t, apperror.IsValidation(err))

	bad := "A/B"
	_, err = h.admin.SetConfiguration(ctx, ConfigInput{DocumentType: numerator.SalesOrder, DisplayPrefix: &bad})
	assert.True(t, apperror.IsValidation(err))

	cfg := h.configure(t, numerator.SalesOrder, "SO")
	_, err = h.admin.SetConfiguration(ctx, ConfigInput{ID: cfg.ID, DocumentType: numerator.SalesQuote})
	assert.True(t, apperror.IsValidation(err))
}

func TestAdmin_SeedDefaultsIsIdempotent(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	created, err := h.admin.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Len(t, created, len(numerator.SeededDocumentTypes()))
	for _, c := range created {
		assert.True(t, c.IsActive)
		assert.True(t, c.HasSeries())
		assert.Equal(t, int64(0), h.series(t, c.SeriesID).Current)
	}

	again, err := h.admin.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	assert.Equal(t, "Sale-1001", h.service.Preview(ctx, numerator.SalesInvoice))
}

func TestAdmin_UpdateSettingsRejectsZeroCounter(t *testing.T) {
	h := newHarness(t, 0)
	zero := int64(0)

	_, err := h.admin.UpdateSettings(context.Background(), SettingsInput{CurrentInvoiceNumber: &zero})
	assert.True(t, apperror.IsValidation(err))
}
