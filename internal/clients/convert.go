package clients

import (
	"github.com/shopspring/decimal"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
)

// nanoExponent matches the broker's fixed-point representation: a value is
// units plus nano billionths.
const nanoExponent = -9

// QuotationToDecimal converts a broker quotation into an exact decimal.
func QuotationToDecimal(q *pb.Quotation) decimal.Decimal {
	if q == nil {
		return decimal.Zero
	}
	return decimal.New(q.GetUnits(), 0).Add(decimal.New(int64(q.GetNano()), nanoExponent))
}

// MoneyValueToDecimal converts a broker money value into an exact decimal,
// dropping the currency tag.
func MoneyValueToDecimal(m *pb.MoneyValue) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	return decimal.New(m.GetUnits(), 0).Add(decimal.New(int64(m.GetNano()), nanoExponent))
}

// DecimalToQuotation converts a decimal back into the broker representation.
// Digits beyond the ninth decimal place are truncated.
func DecimalToQuotation(d decimal.Decimal) *pb.Quotation {
	units := d.IntPart()
	nano := d.Sub(decimal.New(units, 0)).Shift(9).IntPart()
	return &pb.Quotation{Units: units, Nano: int32(nano)}
}
