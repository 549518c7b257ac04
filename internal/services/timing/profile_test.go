package timing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/suenot/etf-monitor/internal/domain"
)

func candleAt(hour int, open, high, low string) domain.Candle {
	return domain.Candle{
		Open: decimal.RequireFromString(open),
		High: decimal.RequireFromString(high),
		Low:  decimal.RequireFromString(low),
		Time: time.Date(2024, 3, 15, hour, 0, 0, 0, time.UTC),
	}
}

func TestBuildInstrumentProfile_AveragesPerHour(t *testing.T) {
	candles := []domain.Candle{
		// hour 10: vol 0.02 and 0.04, mean 0.03
		candleAt(10, "100", "101", "99"),
		candleAt(10, "100", "102", "98"),
		// hour 14: single candle, vol 0.01
		candleAt(14, "200", "201", "199"),
	}

	profile := BuildInstrumentProfile(candles)

	mean10, ok := profile.Mean(10)
	require.True(t, ok)
	require.True(t, mean10.Equal(decimal.RequireFromString("0.03")), "hour 10 mean %s", mean10.String())

	mean14, ok := profile.Mean(14)
	require.True(t, ok)
	require.True(t, mean14.Equal(decimal.RequireFromString("0.01")), "hour 14 mean %s", mean14.String())

	_, ok = profile.Mean(3)
	require.False(t, ok, "hour without candles must report no data")
}

func TestBuildInstrumentProfile_IgnoresZeroOpen(t *testing.T) {
	candles := []domain.Candle{
		{Open: decimal.Zero, High: decimal.NewFromInt(10), Low: decimal.NewFromInt(1), Time: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)},
	}

	profile := BuildInstrumentProfile(candles)

	_, ok := profile.Mean(12)
	require.False(t, ok)
	require.Zero(t, profile.Samples(12))
}

func TestMergeProfiles_AveragesOnlySampledInstruments(t *testing.T) {
	first := BuildInstrumentProfile([]domain.Candle{
		candleAt(10, "100", "102", "98"), // 0.04
	})
	second := BuildInstrumentProfile([]domain.Candle{
		candleAt(10, "100", "101", "99"), // 0.02
		candleAt(15, "100", "101", "99"), // 0.02
	})

	merged := MergeProfiles([]Profile{first, second})

	mean10, ok := merged.Mean(10)
	require.True(t, ok)
	require.True(t, mean10.Equal(decimal.RequireFromString("0.03")), "hour 10 mean %s", mean10.String())

	// hour 15 present only in the second instrument: average over one, not two
	mean15, ok := merged.Mean(15)
	require.True(t, ok)
	require.True(t, mean15.Equal(decimal.RequireFromString("0.02")), "hour 15 mean %s", mean15.String())

	_, ok = merged.Mean(20)
	require.False(t, ok)
}

func TestProfileStats(t *testing.T) {
	profile := BuildInstrumentProfile([]domain.Candle{
		candleAt(10, "100", "101", "99"), // 0.02
		candleAt(11, "100", "104", "98"), // 0.06
	})

	stats := profile.Stats()

	require.Equal(t, 2, stats.SampledHours)
	require.True(t, stats.Min.Equal(decimal.RequireFromString("0.02")))
	require.True(t, stats.Max.Equal(decimal.RequireFromString("0.06")))
	require.True(t, stats.Avg.Equal(decimal.RequireFromString("0.04")))
}
