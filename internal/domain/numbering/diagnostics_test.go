package numbering

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/numerator"
)

func TestDiagnose_FreshInstall(t *testing.T) {
	h := newHarness(t, 0)

	report, err := h.admin.Diagnose(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Healthy())
	assert.Equal(t, len(numerator.SeededDocumentTypes()), report.Count(FindingMissingConfig))
}

func TestDiagnose_CounterBehindAndOrphans(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	_, err := h.admin.SeedDefaults(ctx)
	require.NoError(t, err)

	h.store.InsertNumber(numerator.SalesInvoice, "Sale-1200")
	_, err = h.admin.CreateSeries(ctx, SeriesInput{ID: "LOOSE-", DocumentType: numerator.SalesOrder})
	require.NoError(t, err)

	report, err := h.admin.Diagnose(ctx)
	require.NoError(t, err)

	assert.False(t, report.Healthy())
	assert.Equal(t, 1, report.Count(FindingCounterBehind))
	assert.Equal(t, 1, report.Count(FindingOrphanedSeries))
	assert.Equal(t, 0, report.Count(FindingMissingConfig))
}

func TestDiagnose_MultipleActive(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	first := h.configure(t, numerator.SalesOrder, "SO")
	h.configure(t, numerator.SalesOrder, "ORD")

	// Reactivate the first one directly in storage to bypass sibling deactivation.
	first.IsActive = true
	require.NoError(t, h.store.SaveConfig(ctx, first))

	report, err := h.admin.Diagnose(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Count(FindingMultipleConfigs))
	assert.Equal(t, 1, report.Count(FindingMultipleActive))
}

func TestResync_AdvancesBehindCounters(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	h.configure(t, numerator.SalesInvoice, "INV")
	h.configure(t, numerator.SalesOrder, "SO")

	h.store.InsertNumber(numerator.SalesInvoice, "INV-1042")
	h.store.InsertNumber(numerator.SalesInvoice, "INV-1007")
	h.store.InsertNumber(numerator.SalesInvoice, "INV-ABC")

	results, err := h.admin.Resync(ctx, "")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byType := map[string]ResyncResult{}
	for _, r := range results {
		byType[r.DocumentType] = r
	}
	assert.True(t, byType[numerator.SalesInvoice].Advanced())
	assert.Equal(t, int64(1042), byType[numerator.SalesInvoice].After)
	assert.False(t, byType[numerator.SalesOrder].Advanced())

	assert.Equal(t, "INV-1043", h.service.Preview(ctx, numerator.SalesInvoice))

	again, err := h.admin.Resync(ctx, numerator.SalesInvoice)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.False(t, again[0].Advanced())
}
