package etfsnapshots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suenot/etf-monitor/internal/domain"
)

func newTestStore(t *testing.T) *WALStore {
	t.Helper()
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err, "failed to open etf snapshot WAL")
	t.Cleanup(func() {
		assert.NoError(t, store.Close(), "failed to close WAL")
	})
	return store
}

func TestWALStore_LatestEtfWinsPerTicker(t *testing.T) {
	store := newTestStore(t)

	old := domain.EtfInfo{
		Ticker:            "TRUR",
		Figi:              "F_TRUR",
		LotSize:           10,
		SharesOutstanding: decimal.NewFromInt(100_000_000),
	}
	updated := old
	updated.SharesOutstanding = decimal.NewFromInt(120_000_000)

	require.NoError(t, store.SaveEtf(old))
	require.NoError(t, store.SaveEtf(updated))
	require.NoError(t, store.SaveEtf(domain.EtfInfo{
		Ticker: "TMOS", Figi: "F_TMOS", LotSize: 100,
		SharesOutstanding: decimal.NewFromInt(50_000_000),
	}))

	latest, err := store.LatestEtfs()
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.True(t, latest["TRUR"].SharesOutstanding.Equal(decimal.NewFromInt(120_000_000)))
	assert.Equal(t, int64(100), latest["TMOS"].LotSize)
}

func TestWALStore_LatestInvestorsWinsPerFigi(t *testing.T) {
	store := newTestStore(t)

	first := domain.InvestorsSnapshot{
		Figi:       "F_TRUR",
		Ticker:     "TRUR",
		Investors:  250000,
		CapturedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	second := first
	second.Investors = 260000
	second.CapturedAt = first.CapturedAt.AddDate(0, 1, 0)

	require.NoError(t, store.SaveInvestors(first))
	require.NoError(t, store.SaveInvestors(second))

	latest, err := store.LatestInvestors()
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, int64(260000), latest["F_TRUR"].Investors)
}

func TestWALStore_RejectsUnkeyedSnapshots(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.SaveEtf(domain.EtfInfo{}))
	assert.Error(t, store.SaveInvestors(domain.InvestorsSnapshot{}))
}

func TestWALStore_EmptyLog(t *testing.T) {
	store := newTestStore(t)

	etfs, err := store.LatestEtfs()
	require.NoError(t, err)
	assert.Empty(t, etfs)

	investors, err := store.LatestInvestors()
	require.NoError(t, err)
	assert.Empty(t, investors)
}
