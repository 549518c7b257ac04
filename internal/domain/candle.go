package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is a single historical hourly candlestick.
type Candle struct {
	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal
	Time  time.Time
}
