package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/domain/numbering"
)

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"version", "migrate", "seed", "doctor", "resync", "preview"}, names)

	resync, _, err := root.Find([]string{"resync"})
	require.NoError(t, err)
	assert.NotNil(t, resync.Flags().Lookup("type"))
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Version: dev")
}

func TestPreviewCmd_RequiresType(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"preview"})

	assert.Error(t, root.Execute())
}

func TestWriteReport(t *testing.T) {
	var out bytes.Buffer
	writeReport(&out, &numbering.Report{Findings: []numbering.Finding{{
		Kind:         numbering.FindingCounterBehind,
		Severity:     numbering.SeverityError,
		DocumentType: "SalesInvoice",
		SeriesID:     "INV-",
		Message:      "current is 1001 but INV-1050 is stored",
	}}})

	assert.Contains(t, out.String(), "counter_behind")
	assert.Contains(t, out.String(), "INV-1050")

	out.Reset()
	writeReport(&out, &numbering.Report{})
	assert.Equal(t, "no findings\n", out.String())
}

func TestWriteResync(t *testing.T) {
	var out bytes.Buffer
	writeResync(&out, []numbering.ResyncResult{
		{DocumentType: "SalesOrder", SeriesID: "Order-", Before: 0, After: 1100},
		{DocumentType: "SalesQuote", SeriesID: "Quote-", Before: 5, After: 5},
	})

	assert.Contains(t, out.String(), "SalesOrder Order-: 0 -> 1100 (advanced)")
	assert.Contains(t, out.String(), "SalesQuote Quote-: 5 -> 5 (unchanged)")
}
