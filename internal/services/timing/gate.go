package timing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/suenot/etf-monitor/internal/domain"
)

// noDataRecheckInterval bounds how long the gate waits before re-evaluating
// when the profile carries no usable data.
const noDataRecheckInterval = time.Hour

// maxRecheckInterval caps the wait between re-evaluations while waiting for
// the quiet window.
const maxRecheckInterval = time.Hour

// Gate decides whether the current moment is safe for execution based on the
// volatility curve and the configured trading-hours window.
type Gate struct {
	allowedHours []int
	threshold    decimal.Decimal
	now          func() time.Time
}

// NewGate creates a timing gate restricted to the given UTC trading hours.
func NewGate(allowedHours []int, volatilityThreshold decimal.Decimal) *Gate {
	hours := make([]int, 0, len(allowedHours))
	seen := make(map[int]struct{}, len(allowedHours))
	for _, h := range allowedHours {
		if h < 0 || h >= hoursPerDay {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		hours = append(hours, h)
	}
	sort.Ints(hours)

	return &Gate{
		allowedHours: hours,
		threshold:    volatilityThreshold,
		now:          time.Now,
	}
}

// Decide picks the quietest allowed hour and applies the decision rules.
// Hours with no samples are never candidates: an hour with no data must not
// look quiet.
func (g *Gate) Decide(profile Profile) domain.TimingDecision {
	currentHour := g.now().UTC().Hour()

	quietestHour := -1
	minVolatility := decimal.Zero
	for _, hour := range g.allowedHours {
		mean, ok := profile.Mean(hour)
		if !ok {
			continue
		}
		// first-seen wins on exact ties
		if quietestHour == -1 || mean.LessThan(minVolatility) {
			quietestHour = hour
			minVolatility = mean
		}
	}

	if quietestHour == -1 {
		return domain.TimingDecision{
			QuietestHour: -1,
			CurrentHour:  currentHour,
			Action:       domain.TimingActionWait,
			Reason:       "insufficient volatility data for the allowed trading hours",
			RecheckIn:    noDataRecheckInterval,
		}
	}

	isQuiet := minVolatility.LessThan(g.threshold)
	decision := domain.TimingDecision{
		QuietestHour:  quietestHour,
		MinVolatility: minVolatility,
		IsQuietWindow: isQuiet,
		CurrentHour:   currentHour,
	}

	distance := circularHourDistance(currentHour, quietestHour)

	switch {
	case currentHour == quietestHour && isQuiet:
		decision.Action = domain.TimingActionTrade
		decision.Confidence = domain.ConfidenceHigh
		decision.Reason = fmt.Sprintf("current hour %02d:00 UTC is the quietest, volatility %s",
			currentHour, minVolatility.StringFixed(4))
	case distance <= 1 && isQuiet:
		decision.Action = domain.TimingActionTrade
		decision.Confidence = domain.ConfidenceMedium
		decision.Reason = fmt.Sprintf("close to the quietest hour %02d:00 UTC, volatility %s",
			quietestHour, minVolatility.StringFixed(4))
	default:
		hoursUntil := (quietestHour - currentHour + hoursPerDay) % hoursPerDay
		decision.Action = domain.TimingActionWait
		decision.HoursUntilQuiet = hoursUntil
		decision.RecheckIn = recheckIn(hoursUntil)
		decision.Reason = fmt.Sprintf("waiting for the quiet window at %02d:00 UTC, %dh until it recurs",
			quietestHour, hoursUntil)
	}

	return decision
}

func recheckIn(hoursUntil int) time.Duration {
	interval := time.Duration(hoursUntil) * time.Hour
	if interval > maxRecheckInterval || interval <= 0 {
		return maxRecheckInterval
	}
	return interval
}

// circularHourDistance returns the distance between two hours on a 24h clock,
// so 23 and 0 are one hour apart.
func circularHourDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > hoursPerDay/2 {
		d = hoursPerDay - d
	}
	return d
}
