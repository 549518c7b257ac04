// Package timing analyzes historical volatility to pick quiet execution
// windows and gate rebalancing behind them.
package timing

import (
	"github.com/shopspring/decimal"

	"github.com/suenot/etf-monitor/internal/domain"
)

const hoursPerDay = 24

// Profile is an hourly (UTC) average volatility curve. Hours with zero
// contributing samples carry no data and must never look quiet.
type Profile struct {
	means   [hoursPerDay]decimal.Decimal
	samples [hoursPerDay]int
}

// Mean returns the average volatility for the given UTC hour. The second
// return value is false when the hour has no samples.
func (p *Profile) Mean(hour int) (decimal.Decimal, bool) {
	if hour < 0 || hour >= hoursPerDay || p.samples[hour] == 0 {
		return decimal.Zero, false
	}
	return p.means[hour], true
}

// Samples returns the number of contributing samples for the given UTC hour.
func (p *Profile) Samples(hour int) int {
	if hour < 0 || hour >= hoursPerDay {
		return 0
	}
	return p.samples[hour]
}

// BuildInstrumentProfile buckets candle volatility (high−low)/open by UTC hour
// for a single instrument. Candles with a non-positive open are ignored.
func BuildInstrumentProfile(candles []domain.Candle) Profile {
	var sums [hoursPerDay]decimal.Decimal
	var profile Profile

	for i := range candles {
		candle := &candles[i]
		if candle.Open.LessThanOrEqual(decimal.Zero) {
			continue
		}
		hour := candle.Time.UTC().Hour()
		vol := candle.High.Sub(candle.Low).Div(candle.Open)
		sums[hour] = sums[hour].Add(vol)
		profile.samples[hour]++
	}

	for hour := 0; hour < hoursPerDay; hour++ {
		if profile.samples[hour] > 0 {
			profile.means[hour] = sums[hour].Div(decimal.NewFromInt(int64(profile.samples[hour])))
		}
	}

	return profile
}

// MergeProfiles averages per-instrument hourly means into one portfolio-level
// curve. For each hour only instruments that actually have samples contribute.
func MergeProfiles(profiles []Profile) Profile {
	var merged Profile

	for hour := 0; hour < hoursPerDay; hour++ {
		sum := decimal.Zero
		count := 0
		for i := range profiles {
			if profiles[i].samples[hour] == 0 {
				continue
			}
			sum = sum.Add(profiles[i].means[hour])
			count++
		}
		if count > 0 {
			merged.means[hour] = sum.Div(decimal.NewFromInt(int64(count)))
			merged.samples[hour] = count
		}
	}

	return merged
}

// VolatilityStats summarizes a profile for reporting.
type VolatilityStats struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
	Avg decimal.Decimal `json:"avg"`
	// SampledHours is the number of hours with data.
	SampledHours int `json:"sampled_hours"`
}

// Stats aggregates min, max and mean volatility over the sampled hours.
func (p *Profile) Stats() VolatilityStats {
	stats := VolatilityStats{}
	sum := decimal.Zero

	for hour := 0; hour < hoursPerDay; hour++ {
		mean, ok := p.Mean(hour)
		if !ok {
			continue
		}
		if stats.SampledHours == 0 || mean.LessThan(stats.Min) {
			stats.Min = mean
		}
		if stats.SampledHours == 0 || mean.GreaterThan(stats.Max) {
			stats.Max = mean
		}
		sum = sum.Add(mean)
		stats.SampledHours++
	}

	if stats.SampledHours > 0 {
		stats.Avg = sum.Div(decimal.NewFromInt(int64(stats.SampledHours)))
	}
	return stats
}
