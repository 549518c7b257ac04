package domain

import "github.com/shopspring/decimal"

// DesiredWallet maps a ticker to its raw target weight. Raw weights are
// non-negative and are not required to sum to 100; normalization rescales them.
type DesiredWallet map[string]decimal.Decimal

// Sum returns the total of all weights.
func (d DesiredWallet) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, w := range d {
		sum = sum.Add(w)
	}
	return sum
}

// Clone returns a copy of the map so callers can modify it freely.
func (d DesiredWallet) Clone() DesiredWallet {
	out := make(DesiredWallet, len(d))
	for t, w := range d {
		out[t] = w
	}
	return out
}
