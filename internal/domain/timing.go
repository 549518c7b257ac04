package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimingAction tells the orchestrator whether to trade now or wait.
type TimingAction int

const (
	TimingActionWait TimingAction = iota
	TimingActionTrade
)

// String returns the string representation of the timing action.
func (a TimingAction) String() string {
	if a == TimingActionTrade {
		return "trade"
	}
	return "wait"
}

// Timing decision confidence levels.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
)

// TimingDecision is the outcome of the volatility-based timing analysis.
type TimingDecision struct {
	// QuietestHour is the UTC hour with the lowest average volatility among
	// the allowed trading hours, or -1 when no hour has data.
	QuietestHour  int
	MinVolatility decimal.Decimal
	IsQuietWindow bool
	CurrentHour   int
	Action        TimingAction
	Reason        string
	// Confidence is set only for trade decisions.
	Confidence string
	// RecheckIn suggests when to re-evaluate after a wait decision.
	RecheckIn time.Duration
	// HoursUntilQuiet is the circular distance until the quietest hour recurs.
	HoursUntilQuiet int
}
