package clients

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
)

func TestQuotationToDecimal(t *testing.T) {
	cases := []struct {
		name  string
		units int64
		nano  int32
		want  string
	}{
		{"typical fund price", 5, 380000000, "5.38"},
		{"sub-ruble price", 0, 417600000, "0.4176"},
		{"whole units", 42, 0, "42"},
		{"negative value", -1, -500000000, "-1.5"},
		{"zero", 0, 0, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := QuotationToDecimal(&pb.Quotation{Units: tc.units, Nano: tc.nano})
			require.True(t, got.Equal(decimal.RequireFromString(tc.want)),
				"got %s, want %s", got, tc.want)
		})
	}
}

func TestQuotationToDecimal_Nil(t *testing.T) {
	require.True(t, QuotationToDecimal(nil).IsZero())
	require.True(t, MoneyValueToDecimal(nil).IsZero())
}

func TestMoneyValueToDecimal(t *testing.T) {
	got := MoneyValueToDecimal(&pb.MoneyValue{Currency: "rub", Units: 1000, Nano: 250000000})
	require.True(t, got.Equal(decimal.RequireFromString("1000.25")))
}

func TestDecimalToQuotation_Roundtrip(t *testing.T) {
	for _, s := range []string{"5.38", "0.4176", "100", "-7.125", "0.000000001"} {
		d := decimal.RequireFromString(s)
		q := DecimalToQuotation(d)
		require.True(t, QuotationToDecimal(q).Equal(d), "roundtrip of %s", s)
	}
}
