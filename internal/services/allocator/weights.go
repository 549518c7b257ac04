package allocator

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

// ErrNoMarketData is returned when the whole basket has no usable market data.
// The orchestrator treats it as fatal for the current cycle.
var ErrNoMarketData = errors.New("total market cap of the basket is zero")

// MarketCapEntry is one basket instrument with the data needed for weighting.
type MarketCapEntry struct {
	Ticker            string
	LastPrice         decimal.Decimal
	SharesOutstanding decimal.Decimal
}

// MarketCap returns sharesOutstanding × lastPrice.
func (e *MarketCapEntry) MarketCap() decimal.Decimal {
	return e.SharesOutstanding.Mul(e.LastPrice)
}

// MarketCapWeights derives raw target weights per ticker proportional to
// market capitalization. Instruments with no price are excluded from the sum
// and logged as a data-quality warning. A fixed cash reserve entry is added so
// the portfolio always keeps some liquidity.
func MarketCapWeights(entries []MarketCapEntry, cashReservePercent decimal.Decimal, logger *zap.Logger) (domain.DesiredWallet, error) {
	caps := make(map[string]decimal.Decimal, len(entries))
	total := decimal.Zero

	for i := range entries {
		entry := &entries[i]
		if entry.LastPrice.LessThanOrEqual(decimal.Zero) {
			logger.Warn("instrument has no price, excluded from weighting",
				zap.String("ticker", entry.Ticker))
			continue
		}
		if entry.SharesOutstanding.LessThanOrEqual(decimal.Zero) {
			logger.Warn("instrument has no shares outstanding, weight will be zero",
				zap.String("ticker", entry.Ticker))
		}
		mc := entry.MarketCap()
		caps[entry.Ticker] = mc
		total = total.Add(mc)
	}

	if total.LessThanOrEqual(decimal.Zero) {
		return nil, ErrNoMarketData
	}

	investable := hundred.Sub(cashReservePercent)
	desired := make(domain.DesiredWallet, len(caps)+1)
	for ticker, mc := range caps {
		desired[ticker] = mc.Div(total).Mul(investable)
	}
	desired[domain.CashTicker] = cashReservePercent

	return desired, nil
}
