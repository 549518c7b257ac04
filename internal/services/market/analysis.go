// Package market derives trend and volatility indicators from candle history.
package market

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/suenot/etf-monitor/internal/domain"
)

const (
	defaultEmaPeriod = 20
	defaultAtrPeriod = 14
)

// TrendSnapshot summarizes the latest trend state of one instrument.
type TrendSnapshot struct {
	Ticker string
	// LastClose is the close of the most recent candle.
	LastClose decimal.Decimal
	// Ema is the exponential moving average of closes.
	Ema decimal.Decimal
	// Atr is the average true range, an absolute volatility measure.
	Atr decimal.Decimal
	// AboveTrend reports whether the last close sits above the moving average.
	AboveTrend bool
}

// BuildTrendSnapshot computes EMA and ATR over the candle history. Candles
// must be in chronological order.
func BuildTrendSnapshot(ticker string, candles []domain.Candle) (TrendSnapshot, error) {
	need := defaultEmaPeriod
	if defaultAtrPeriod+1 > need {
		need = defaultAtrPeriod + 1
	}
	if len(candles) < need {
		return TrendSnapshot{}, errors.Errorf("not enough candles for %s: need %d, got %d", ticker, need, len(candles))
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i := range candles {
		closes[i], _ = candles[i].Close.Float64()
		highs[i], _ = candles[i].High.Float64()
		lows[i], _ = candles[i].Low.Float64()
	}

	ema := trend.NewEmaWithPeriod[float64](defaultEmaPeriod)
	emaValues := helper.ChanToSlice(ema.Compute(helper.SliceToChan(closes)))
	if len(emaValues) == 0 {
		return TrendSnapshot{}, errors.Errorf("EMA produced no values for %s", ticker)
	}

	atr := volatility.NewAtrWithPeriod[float64](defaultAtrPeriod)
	atrValues := helper.ChanToSlice(atr.Compute(
		helper.SliceToChan(highs),
		helper.SliceToChan(lows),
		helper.SliceToChan(closes),
	))
	if len(atrValues) == 0 {
		return TrendSnapshot{}, errors.Errorf("ATR produced no values for %s", ticker)
	}

	lastClose := candles[len(candles)-1].Close
	lastEma := decimal.NewFromFloat(emaValues[len(emaValues)-1])
	lastAtr := decimal.NewFromFloat(atrValues[len(atrValues)-1])

	return TrendSnapshot{
		Ticker:     ticker,
		LastClose:  lastClose,
		Ema:        lastEma,
		Atr:        lastAtr,
		AboveTrend: lastClose.GreaterThan(lastEma),
	}, nil
}
