// Package domain defines core data structures used throughout the rebalancer.
package domain

import "github.com/shopspring/decimal"

// CashTicker is the ticker of the ruble cash position.
const CashTicker = "RUB"

// Position is a single holding inside a wallet snapshot.
// Positions are owned by the snapshot for one rebalance cycle and are never
// mutated after the cycle completes.
type Position struct {
	Ticker string
	// Figi is empty for the cash position.
	Figi    string
	LotSize int64
	// Price is the price per single unit.
	Price    decimal.Decimal
	Quantity int64
}

// IsCash reports whether the position holds cash rather than an instrument.
func (p *Position) IsCash() bool {
	return p.Ticker == CashTicker
}

// LotValue returns the value of one tradeable lot.
func (p *Position) LotValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.LotSize))
}

// Value returns the current market value of the position.
func (p *Position) Value() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(p.Quantity))
}

// Lots returns the number of whole lots currently held.
func (p *Position) Lots() int64 {
	if p.LotSize <= 0 {
		return 0
	}
	return p.Quantity / p.LotSize
}

// Wallet is a point-in-time snapshot of holdings, at most one position per ticker.
type Wallet []Position

// TotalValue sums the market value of all positions.
func (w Wallet) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for i := range w {
		total = total.Add(w[i].Value())
	}
	return total
}

// Position returns the position for the given ticker.
func (w Wallet) Position(ticker string) (Position, bool) {
	for i := range w {
		if w[i].Ticker == ticker {
			return w[i], true
		}
	}
	return Position{}, false
}

// Tickers returns the tickers present in the wallet, in snapshot order.
func (w Wallet) Tickers() []string {
	tickers := make([]string, 0, len(w))
	for i := range w {
		tickers = append(tickers, w[i].Ticker)
	}
	return tickers
}

// NewCashPosition builds a ruble cash position with the given amount.
func NewCashPosition(amount int64) Position {
	return Position{
		Ticker:   CashTicker,
		LotSize:  1,
		Price:    decimal.NewFromInt(1),
		Quantity: amount,
	}
}
