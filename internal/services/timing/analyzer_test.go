package timing

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

type stubCandleProvider struct {
	candles map[string][]domain.Candle
	calls   int
}

func (s *stubCandleProvider) GetHistoricalCandles(_ context.Context, figi string, _ int) ([]domain.Candle, error) {
	s.calls++
	candles, ok := s.candles[figi]
	if !ok {
		return nil, errors.New("instrument not found")
	}
	return candles, nil
}

func TestAnalyzer_MergesAcrossInstruments(t *testing.T) {
	provider := &stubCandleProvider{candles: map[string][]domain.Candle{
		"FIGI1": {candleAt(10, "100", "102", "98")}, // 0.04
		"FIGI2": {candleAt(10, "100", "101", "99")}, // 0.02
	}}
	analyzer := NewAnalyzer(provider, 7, zap.NewNop())

	profile, err := analyzer.Profile(context.Background(), []string{"FIGI1", "FIGI2"})
	require.NoError(t, err)

	mean, ok := profile.Mean(10)
	require.True(t, ok)
	require.True(t, mean.Equal(decimal.RequireFromString("0.03")))
}

func TestAnalyzer_SkipsFailingInstruments(t *testing.T) {
	provider := &stubCandleProvider{candles: map[string][]domain.Candle{
		"FIGI1": {candleAt(10, "100", "102", "98")},
	}}
	analyzer := NewAnalyzer(provider, 7, zap.NewNop())

	profile, err := analyzer.Profile(context.Background(), []string{"FIGI1", "MISSING"})
	require.NoError(t, err)

	mean, ok := profile.Mean(10)
	require.True(t, ok)
	require.True(t, mean.Equal(decimal.RequireFromString("0.04")))
}

func TestAnalyzer_AllInstrumentsFail(t *testing.T) {
	provider := &stubCandleProvider{}
	analyzer := NewAnalyzer(provider, 7, zap.NewNop())

	_, err := analyzer.Profile(context.Background(), []string{"A", "B"})
	require.ErrorIs(t, err, ErrNoVolatilityData)
}

func TestAnalyzer_CachesAnalysis(t *testing.T) {
	provider := &stubCandleProvider{candles: map[string][]domain.Candle{
		"FIGI1": {candleAt(10, "100", "102", "98")},
	}}
	analyzer := NewAnalyzer(provider, 7, zap.NewNop())

	_, err := analyzer.Profile(context.Background(), []string{"FIGI1"})
	require.NoError(t, err)
	_, err = analyzer.Profile(context.Background(), []string{"FIGI1"})
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls, "second call within TTL must hit the cache")

	analyzer.Invalidate()
	_, err = analyzer.Profile(context.Background(), []string{"FIGI1"})
	require.NoError(t, err)
	require.Equal(t, 2, provider.calls)
}

func TestAdvisor_FailsWhenNothingResolvable(t *testing.T) {
	analyzer := NewAnalyzer(&stubCandleProvider{}, 7, zap.NewNop())
	gate := NewGate(tradingHours, decimal.RequireFromString("0.02"))
	advisor := NewAdvisor(analyzer, gate, failingResolver{}, zap.NewNop())

	_, err := advisor.Decide(context.Background(), []string{"TMOS"})
	require.Error(t, err)
}

type failingResolver struct{}

func (failingResolver) GetInstrumentMeta(context.Context, string) (domain.InstrumentMeta, error) {
	return domain.InstrumentMeta{}, errors.New("unknown ticker")
}

func TestAdvisor_DecidesFromResolvedInstruments(t *testing.T) {
	provider := &stubCandleProvider{candles: map[string][]domain.Candle{
		"FIGI1": {candleAt(13, "100", "100.3", "100")}, // 0.003
	}}
	analyzer := NewAnalyzer(provider, 7, zap.NewNop())
	gate := NewGate(tradingHours, decimal.RequireFromString("0.02"))
	gate.now = fixedClock(13)
	advisor := NewAdvisor(analyzer, gate, mapResolver{"TMOS": "FIGI1"}, zap.NewNop())

	decision, err := advisor.Decide(context.Background(), []string{"TMOS"})
	require.NoError(t, err)
	require.Equal(t, domain.TimingActionTrade, decision.Action)
	require.Equal(t, domain.ConfidenceHigh, decision.Confidence)
}

type mapResolver map[string]string

func (m mapResolver) GetInstrumentMeta(_ context.Context, ticker string) (domain.InstrumentMeta, error) {
	figi, ok := m[ticker]
	if !ok {
		return domain.InstrumentMeta{}, errors.New("unknown ticker")
	}
	return domain.InstrumentMeta{Ticker: ticker, Figi: figi, LotSize: 1}, nil
}
