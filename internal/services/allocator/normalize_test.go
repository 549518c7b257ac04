package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/suenot/etf-monitor/internal/domain"
)

func TestNormalize_RescalesToHundred(t *testing.T) {
	desired := domain.DesiredWallet{
		"AAPL": decimal.NewFromInt(100),
		"USD":  decimal.NewFromInt(50),
	}

	normalized, err := Normalize(desired, nil)
	require.NoError(t, err)

	require.True(t, normalized["AAPL"].Sub(decimal.RequireFromString("66.6666666666666667")).Abs().LessThan(decimal.RequireFromString("0.000001")),
		"AAPL weight %s", normalized["AAPL"].String())
	require.True(t, normalized["USD"].Sub(decimal.RequireFromString("33.3333333333333333")).Abs().LessThan(decimal.RequireFromString("0.000001")),
		"USD weight %s", normalized["USD"].String())

	sum := normalized.Sum()
	require.True(t, sum.Sub(decimal.NewFromInt(100)).Abs().LessThan(decimal.RequireFromString("0.000001")),
		"sum must be 100, got %s", sum.String())
}

func TestNormalize_AlreadyNormalized(t *testing.T) {
	desired := domain.DesiredWallet{
		"TRUR": decimal.NewFromInt(50),
		"TMOS": decimal.NewFromInt(50),
		"RUB":  decimal.Zero,
	}

	normalized, err := Normalize(desired, nil)
	require.NoError(t, err)

	require.True(t, normalized["TRUR"].Equal(decimal.NewFromInt(50)))
	require.True(t, normalized["TMOS"].Equal(decimal.NewFromInt(50)))
	require.True(t, normalized["RUB"].Equal(decimal.Zero))
}

func TestNormalize_FillsWalletTickersWithZero(t *testing.T) {
	desired := domain.DesiredWallet{
		"TRUR": decimal.NewFromInt(50),
		"TMOS": decimal.NewFromInt(50),
	}
	wallet := domain.Wallet{
		domain.NewCashPosition(1),
		{Ticker: "TGLD", Figi: "BBG222222222", LotSize: 100, Price: decimal.NewFromFloat(0.1), Quantity: 500},
	}

	normalized, err := Normalize(desired, wallet)
	require.NoError(t, err)

	require.Contains(t, normalized, "RUB")
	require.Contains(t, normalized, "TGLD")
	require.True(t, normalized["RUB"].IsZero(), "RUB must be driven to zero")
	require.True(t, normalized["TGLD"].IsZero(), "TGLD must be driven to zero")
	require.True(t, normalized["TRUR"].Equal(decimal.NewFromInt(50)))
}

func TestNormalize_ZeroSum(t *testing.T) {
	cases := []struct {
		name    string
		desired domain.DesiredWallet
	}{
		{name: "empty map", desired: domain.DesiredWallet{}},
		{name: "all zero", desired: domain.DesiredWallet{"TRUR": decimal.Zero, "TMOS": decimal.Zero}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Normalize(tc.desired, nil)
			require.ErrorIs(t, err, ErrZeroSumDesiredWallet)
		})
	}
}

func TestNormalize_SumStaysHundredForArbitraryInputs(t *testing.T) {
	cases := []domain.DesiredWallet{
		{"A": decimal.NewFromInt(1)},
		{"A": decimal.NewFromInt(3), "B": decimal.NewFromInt(7)},
		{"A": decimal.NewFromFloat(0.1), "B": decimal.NewFromFloat(0.2), "C": decimal.NewFromFloat(0.7)},
		{"A": decimal.NewFromInt(200), "B": decimal.NewFromInt(150), "C": decimal.NewFromInt(33), "D": decimal.NewFromInt(17)},
	}

	tolerance := decimal.RequireFromString("0.000001")
	for _, desired := range cases {
		normalized, err := Normalize(desired, nil)
		require.NoError(t, err)
		sum := normalized.Sum()
		require.True(t, sum.Sub(decimal.NewFromInt(100)).Abs().LessThan(tolerance),
			"sum for %v must be 100, got %s", desired, sum.String())
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	desired := domain.DesiredWallet{"AAPL": decimal.NewFromInt(100), "USD": decimal.NewFromInt(50)}
	_, err := Normalize(desired, nil)
	require.NoError(t, err)
	require.True(t, desired["AAPL"].Equal(decimal.NewFromInt(100)))
	require.True(t, desired["USD"].Equal(decimal.NewFromInt(50)))
}
