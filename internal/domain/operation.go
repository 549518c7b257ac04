package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Direction represents the side of a planned rebalance operation.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionBuy
	DirectionSell
)

const (
	directionStringNone = "NONE"
	directionStringBuy  = "BUY"
	directionStringSell = "SELL"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return directionStringBuy
	case DirectionSell:
		return directionStringSell
	case DirectionNone:
		return directionStringNone
	default:
		return "unknown"
	}
}

// RebalanceOperation is one planned buy or sell produced by a planning cycle.
// Operations are consumed by the sequencer and then by the order executor;
// the core never persists them on its own.
type RebalanceOperation struct {
	Ticker     string          `json:"ticker"`
	Figi       string          `json:"figi"`
	Direction  Direction       `json:"direction"`
	Lots       int64           `json:"lots"`
	ValueDelta decimal.Decimal `json:"value_delta"`
	// Priority is the absolute weight deviation that triggered the operation.
	Priority      decimal.Decimal `json:"priority"`
	CurrentWeight decimal.Decimal `json:"current_weight"`
	DesiredWeight decimal.Decimal `json:"desired_weight"`
}

// String returns a human-readable string representation.
func (o *RebalanceOperation) String() string {
	return fmt.Sprintf("%s %s lots=%d value_delta=%s", o.Direction.String(), o.Ticker, o.Lots, o.ValueDelta.String())
}
