package rebalances

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
	require.NoError(t, err, "failed to open rebalance WAL")
	t.Cleanup(func() {
		assert.NoError(t, store.Close(), "failed to close WAL")
	})
	return store
}

func sampleResult(status domain.RebalanceStatus) domain.RebalanceResult {
	return domain.RebalanceResult{
		Timestamp:           time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		Status:              status,
		Reason:              "test cycle",
		SuccessCount:        1,
		TotalCount:          1,
		UninvestedRemainder: decimal.RequireFromString("3.66"),
	}
}

func TestWALStore_SaveAndReadBack(t *testing.T) {
	store := newTestStore(t)

	result := sampleResult(domain.StatusExecuted)
	result.Operations = []domain.RebalanceOperation{{
		Ticker:     "TRUR",
		Figi:       "F_TRUR",
		Direction:  domain.DirectionBuy,
		Lots:       276,
		ValueDelta: decimal.RequireFromString("1484.88"),
	}}
	require.NoError(t, store.Save(result))

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0].Result
	assert.Equal(t, domain.StatusExecuted, got.Status)
	assert.Equal(t, "TRUR", got.Operations[0].Ticker)
	assert.True(t, got.UninvestedRemainder.Equal(decimal.RequireFromString("3.66")))
	assert.True(t, got.Timestamp.Equal(result.Timestamp))
}

func TestWALStore_ResultsAfter(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(sampleResult(domain.StatusBalanced)))
	require.NoError(t, store.Save(sampleResult(domain.StatusAborted)))
	require.NoError(t, store.Save(sampleResult(domain.StatusExecuted)))

	records, err := store.ResultsAfter(1)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.StatusAborted, records[0].Result.Status)
	assert.Equal(t, domain.StatusExecuted, records[1].Result.Status)

	records, err = store.ResultsAfter(store.CurrentIndex())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestWALStore_EmptyLog(t *testing.T) {
	store := newTestStore(t)

	records, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, store.CurrentIndex())
}

func TestWALStore_StatusRoundtrip(t *testing.T) {
	store := newTestStore(t)

	for _, status := range []domain.RebalanceStatus{
		domain.StatusBalanced, domain.StatusExecuted, domain.StatusAborted,
	} {
		require.NoError(t, store.Save(sampleResult(status)))
	}

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.StatusBalanced, records[0].Result.Status)
	assert.Equal(t, domain.StatusExecuted, records[1].Result.Status)
	assert.Equal(t, domain.StatusAborted, records[2].Result.Status)
}
