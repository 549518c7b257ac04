// Package planner turns a wallet snapshot and normalized target weights into
// an executable list of buy/sell operations under integer-lot constraints.
package planner

import (
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Thresholds gates operation emission. Both conditions must hold for an
// operation to be emitted, otherwise the ticker is treated as balanced.
type Thresholds struct {
	MaxDeviationPercent decimal.Decimal
	MinOrderValue       decimal.Decimal
}

// Plan is the outcome of one planning pass.
type Plan struct {
	Operations []domain.RebalanceOperation
	// UninvestedRemainder is the accumulated per-ticker value that cannot be
	// allocated to whole lots. Informational, not actionable by itself.
	UninvestedRemainder decimal.Decimal
	// SkippedTickers lists target tickers that could not be planned because no
	// price or metadata was obtainable.
	SkippedTickers []string
}

// BuildPlan computes the signed buy/sell delta for every ticker in the union
// of wallet tickers and normalized target tickers. The wallet, catalog and
// price snapshot are read-only inputs collected before planning starts, so
// the computation is pure.
//
// Affordable lots are always floored: the plan must never propose spending
// beyond the target allocation.
func BuildPlan(wallet domain.Wallet, normalized domain.DesiredWallet,
	catalog domain.InstrumentCatalog, prices domain.PriceSnapshot,
	thresholds Thresholds, logger *zap.Logger) Plan {

	plan := Plan{UninvestedRemainder: decimal.Zero}

	// Phase one: complete the position set. Target tickers missing from the
	// wallet become provisional zero-quantity positions priced from the
	// snapshot; without a price an order cannot be planned safely.
	positions := make([]domain.Position, len(wallet))
	copy(positions, wallet)

	for _, ticker := range sortedTickers(normalized) {
		if _, ok := wallet.Position(ticker); ok {
			continue
		}
		if ticker == domain.CashTicker {
			positions = append(positions, domain.NewCashPosition(0))
			continue
		}

		meta, ok := catalog.Meta(ticker)
		if !ok {
			logger.Warn("no instrument metadata for target ticker, skipping",
				zap.String("ticker", ticker))
			plan.SkippedTickers = append(plan.SkippedTickers, ticker)
			continue
		}
		price, ok := prices.Price(meta.Figi)
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			logger.Warn("no price for target ticker, skipping",
				zap.String("ticker", ticker), zap.String("figi", meta.Figi))
			plan.SkippedTickers = append(plan.SkippedTickers, ticker)
			continue
		}

		positions = append(positions, domain.Position{
			Ticker:  ticker,
			Figi:    meta.Figi,
			LotSize: meta.LotSize,
			Price:   price,
		})
	}

	totalValue := domain.Wallet(positions).TotalValue()
	if totalValue.LessThanOrEqual(decimal.Zero) {
		logger.Warn("wallet has no value, nothing to plan")
		return plan
	}

	// Phase two: one pure transform over the completed set.
	sort.Slice(positions, func(i, j int) bool { return positions[i].Ticker < positions[j].Ticker })

	for i := range positions {
		pos := &positions[i]

		weight, ok := normalized[pos.Ticker]
		if !ok {
			weight = decimal.Zero
		}

		lotValue := pos.LotValue()
		if lotValue.LessThanOrEqual(decimal.Zero) {
			logger.Warn("position has no lot value, skipping",
				zap.String("ticker", pos.Ticker))
			continue
		}

		targetValue := totalValue.Mul(weight).Div(hundred)
		affordableLots := targetValue.Div(lotValue).Floor().IntPart()
		affordableValue := decimal.NewFromInt(affordableLots).Mul(lotValue)
		plan.UninvestedRemainder = plan.UninvestedRemainder.Add(targetValue.Sub(affordableValue).Abs())

		currentValue := pos.Value()
		valueDelta := affordableValue.Sub(currentValue)
		lotsDelta := affordableLots - pos.Lots()

		currentWeight := currentValue.Mul(hundred).Div(totalValue)
		deviation := weight.Sub(currentWeight)

		if pos.IsCash() {
			// Cash is not tradeable; its share adjusts as a side effect of the
			// other orders.
			continue
		}
		if deviation.Abs().LessThanOrEqual(thresholds.MaxDeviationPercent) {
			continue
		}
		if valueDelta.Abs().LessThanOrEqual(thresholds.MinOrderValue) {
			continue
		}
		if lotsDelta == 0 {
			continue
		}

		direction := domain.DirectionBuy
		lots := lotsDelta
		if lotsDelta < 0 {
			direction = domain.DirectionSell
			lots = -lotsDelta
		}

		plan.Operations = append(plan.Operations, domain.RebalanceOperation{
			Ticker:        pos.Ticker,
			Figi:          pos.Figi,
			Direction:     direction,
			Lots:          lots,
			ValueDelta:    valueDelta,
			Priority:      deviation.Abs(),
			CurrentWeight: currentWeight,
			DesiredWeight: weight,
		})
	}

	return plan
}

func sortedTickers(weights domain.DesiredWallet) []string {
	tickers := make([]string, 0, len(weights))
	for ticker := range weights {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}
