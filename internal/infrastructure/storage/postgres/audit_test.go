package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_PackSmallInline(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	var e AuditEntry
	s.pack(&e, []byte(`{"before":null,"after":{"id":"INV-"}}`))

	assert.Equal(t, CompressionNone, e.CompressionAlgo)
	assert.Nil(t, e.ChangesCompressed)
	assert.JSONEq(t, `{"before":null,"after":{"id":"INV-"}}`, string(e.Changes))
}

func TestAuditService_PackLargeRoundTrip(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	payload := []byte(`{"after":"` + strings.Repeat("x", DefaultCompressThreshold+1) + `"}`)
	var e AuditEntry
	s.pack(&e, payload)

	require.Equal(t, CompressionZstd, e.CompressionAlgo)
	assert.Nil(t, e.Changes)
	assert.Less(t, len(e.ChangesCompressed), len(payload))

	require.NoError(t, s.unpack(&e))
	assert.Equal(t, payload, []byte(e.Changes))
	assert.Nil(t, e.ChangesCompressed)
}
