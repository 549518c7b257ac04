package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstrumentMeta is the static metadata needed to plan an order.
type InstrumentMeta struct {
	Ticker  string
	Figi    string
	LotSize int64
}

// InstrumentCatalog is a read-only ticker-keyed snapshot of instrument
// metadata, collected once per planning cycle and passed explicitly so the
// planner stays pure.
type InstrumentCatalog map[string]InstrumentMeta

// Meta returns the metadata for the given ticker.
func (c InstrumentCatalog) Meta(ticker string) (InstrumentMeta, bool) {
	m, ok := c[ticker]
	return m, ok
}

// PriceSnapshot is a read-only FIGI-keyed snapshot of last prices for one
// planning cycle.
type PriceSnapshot map[string]decimal.Decimal

// Price returns the last known unit price for the given FIGI.
func (s PriceSnapshot) Price(figi string) (decimal.Decimal, bool) {
	p, ok := s[figi]
	return p, ok
}

// EtfInfo describes one exchange-traded fund from the broker catalog.
type EtfInfo struct {
	Ticker  string          `json:"ticker"`
	Figi    string          `json:"figi"`
	Name    string          `json:"name,omitempty"`
	LotSize int64           `json:"lot_size"`
	// SharesOutstanding is the number of fund units in circulation, used for
	// market-cap weighting. Zero when the broker reports no data.
	SharesOutstanding decimal.Decimal `json:"shares_outstanding"`
}

// InvestorsSnapshot is one scraped investor-count observation for a fund.
type InvestorsSnapshot struct {
	Figi       string    `json:"figi"`
	Ticker     string    `json:"ticker,omitempty"`
	Investors  int64     `json:"investors"`
	CapturedAt time.Time `json:"captured_at"`
}
