package numerator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/apperror"
)

func TestSeries_Preview(t *testing.T) {
	s, err := NewSeries("INV-", SalesInvoice, 1001, 4)
	require.NoError(t, err)

	assert.False(t, s.Started())
	assert.Equal(t, "INV-1001", s.Preview())
	assert.Equal(t, s.Preview(), s.Preview())

	s.Current = 1041
	assert.Equal(t, "INV-1042", s.Preview())
	assert.Equal(t, int64(1041), s.Current)
}

func TestSeries_NextValueWithoutStart(t *testing.T) {
	s := &Series{ID: "X-"}
	assert.Equal(t, DefaultStart, s.NextValue())
}

func TestNewSeries_Validation(t *testing.T) {
	_, err := NewSeries("A/B", SalesOrder, 1, 4)
	assert.True(t, apperror.IsValidation(err))

	_, err = NewSeries("SO-", SalesOrder, 0, 4)
	assert.True(t, apperror.IsValidation(err))

	_, err = NewSeries("SO-", SalesOrder, 1, -1)
	assert.True(t, apperror.IsValidation(err))
}

func TestSeries_Suffix(t *testing.T) {
	s := &Series{ID: "SQ-", PadWidth: 4}

	n, ok := s.Suffix(s.Format(42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = s.Suffix("SO-0042")
	assert.False(t, ok)
}
