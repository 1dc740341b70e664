package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineAmount(t *testing.T) {
	got := LineAmount(MustMoney("3"), MustMoney("19.995"))
	assert.Equal(t, "59.99", got.StringFixed(MoneyScale))

	got = LineAmount(MustMoney("0.5"), MustMoney("0.01"))
	assert.Equal(t, "0.01", got.StringFixed(MoneyScale))
}

func TestSum(t *testing.T) {
	assert.True(t, Sum().IsZero())
	assert.Equal(t, "10.30", Sum(MustMoney("10.10"), MustMoney("0.20")).StringFixed(MoneyScale))
}
