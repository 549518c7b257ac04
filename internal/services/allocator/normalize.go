// Package allocator derives and normalizes target portfolio weights.
package allocator

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/suenot/etf-monitor/internal/domain"
)

// ErrZeroSumDesiredWallet is returned when the desired weights sum to zero and
// no sensible allocation can be derived.
var ErrZeroSumDesiredWallet = errors.New("desired wallet weights sum to zero")

var hundred = decimal.NewFromInt(100)

// Normalize rescales an arbitrary weight map so the weights sum to exactly 100.
// Tickers held in the current wallet but absent from the desired map are added
// with weight 0 before the rescale, so instruments outside the target
// allocation are driven to zero over time.
func Normalize(desired domain.DesiredWallet, wallet domain.Wallet) (domain.DesiredWallet, error) {
	out := desired.Clone()
	for i := range wallet {
		if _, ok := out[wallet[i].Ticker]; !ok {
			out[wallet[i].Ticker] = decimal.Zero
		}
	}

	sum := out.Sum()
	if sum.LessThanOrEqual(decimal.Zero) {
		return nil, ErrZeroSumDesiredWallet
	}

	for ticker, weight := range out {
		out[ticker] = weight.Mul(hundred).Div(sum)
	}

	return out, nil
}
