package models_test

import (
	"testing"

	"github.com/Nzyazin/cashledger/internal/core/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		err  error
	}{
		{"100.00", 10000, nil},
		{"0.01", 1, nil},
		{"40", 4000, nil},
		{"12.5", 1250, nil},
		{"1.100", 110, nil},
		{"999999999.99", models.MaxAmount, nil},
		{"0", 0, models.ErrAmountNotPositive},
		{"-5", 0, models.ErrAmountNotPositive},
		{"0.001", 0, models.ErrAmountPrecision},
		{"10.123", 0, models.ErrAmountPrecision},
		{"1000000000.00", 0, models.ErrAmountTooLarge},
		{"1E5", 10000000, nil},
		{"1.10000000000000000000", 110, nil},
		{"1e20000000", 0, models.ErrAmountTooLarge},
		{"1e-20000000", 0, models.ErrAmountPrecision},
		{"123456789012345678901234567890", 0, models.ErrAmountTooLarge},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := models.ToMinorUnits(decimal.RequireFromString(c.in))
			if c.err != nil {
				assert.ErrorIs(t, err, c.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "0.00", models.FormatMinorUnits(0))
	assert.Equal(t, "60.00", models.FormatMinorUnits(6000))
	assert.Equal(t, "-0.05", models.FormatMinorUnits(-5))
	assert.Equal(t, "1234.56", models.FormatMinorUnits(123456))
}

func TestParseKind(t *testing.T) {
	k, ok := models.ParseKind(" Deposit ")
	assert.True(t, ok)
	assert.Equal(t, models.KindDeposit, k)

	k, ok = models.ParseKind("WITHDRAWAL")
	assert.True(t, ok)
	assert.Equal(t, models.KindWithdrawal, k)

	_, ok = models.ParseKind("transfer")
	assert.False(t, ok)

	_, ok = models.ParseKind("")
	assert.False(t, ok)
}

func TestTotalsApply(t *testing.T) {
	var totals models.Totals
	totals.Apply(models.Transaction{Kind: models.KindDeposit, Amount: 10000})
	totals.Apply(models.Transaction{Kind: models.KindWithdrawal, Amount: 4000})

	assert.Equal(t, int64(10000), totals.Deposits)
	assert.Equal(t, int64(4000), totals.Withdrawals)
	assert.Equal(t, int64(6000), totals.Balance())
}
