package balancer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

type stubBroker struct {
	wallet domain.Wallet
	err    error
}

func (s *stubBroker) GetCurrentWallet(context.Context) (domain.Wallet, error) {
	return s.wallet, s.err
}

type stubInstruments struct {
	etfs []domain.EtfInfo
}

func (s *stubInstruments) ListEtfs(context.Context) ([]domain.EtfInfo, error) {
	return s.etfs, nil
}

func (s *stubInstruments) GetInstrumentMeta(_ context.Context, ticker string) (domain.InstrumentMeta, error) {
	for _, etf := range s.etfs {
		if etf.Ticker == ticker {
			return domain.InstrumentMeta{Ticker: etf.Ticker, Figi: etf.Figi, LotSize: etf.LotSize}, nil
		}
	}
	return domain.InstrumentMeta{}, errors.New("unknown ticker")
}

type stubMarket struct {
	prices map[string]decimal.Decimal
}

func (s *stubMarket) GetLastPrice(_ context.Context, figi string) (decimal.Decimal, error) {
	price, ok := s.prices[figi]
	if !ok {
		return decimal.Zero, errors.New("no price")
	}
	return price, nil
}

type recordingExecutor struct {
	submitted   []domain.RebalanceOperation
	failTickers map[string]bool
}

func (e *recordingExecutor) SubmitOrder(_ context.Context, op domain.RebalanceOperation) error {
	e.submitted = append(e.submitted, op)
	if e.failTickers[op.Ticker] {
		return errors.New("order rejected by broker")
	}
	return nil
}

type stubAdvisor struct {
	decision domain.TimingDecision
	err      error
}

func (s *stubAdvisor) Decide(context.Context, []string) (domain.TimingDecision, error) {
	return s.decision, s.err
}

type memRecorder struct {
	saved []domain.RebalanceResult
}

func (m *memRecorder) Save(result domain.RebalanceResult) error {
	m.saved = append(m.saved, result)
	return nil
}

func tradeDecision() domain.TimingDecision {
	return domain.TimingDecision{Action: domain.TimingActionTrade, Confidence: domain.ConfidenceHigh}
}

func waitDecision() domain.TimingDecision {
	return domain.TimingDecision{Action: domain.TimingActionWait, Reason: "current hour is not quiet"}
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// two equal-cap ETFs plus a 5% cash reserve: 47.5% each
func testFixture(advisor TimingAdvisor, executor OrderExecutor, recorder ResultRecorder) *Balancer {
	broker := &stubBroker{wallet: domain.Wallet{domain.NewCashPosition(10000)}}
	instruments := &stubInstruments{etfs: []domain.EtfInfo{
		{Ticker: "TMOS", Figi: "F_TMOS", LotSize: 1, SharesOutstanding: decimal.NewFromInt(1000)},
		{Ticker: "TRUR", Figi: "F_TRUR", LotSize: 1, SharesOutstanding: decimal.NewFromInt(1000)},
	}}
	market := &stubMarket{prices: map[string]decimal.Decimal{
		"F_TMOS": price("10"),
		"F_TRUR": price("10"),
	}}
	return New(broker, instruments, market, executor, advisor, recorder, Config{
		Basket:              []string{"TMOS", "TRUR"},
		CashReservePercent:  price("5"),
		MaxDeviationPercent: price("1"),
		MinOrderValue:       price("100"),
	}, zap.NewNop())
}

func TestRebalance_ExecutesPlannedOperations(t *testing.T) {
	executor := &recordingExecutor{}
	recorder := &memRecorder{}
	balancer := testFixture(&stubAdvisor{decision: tradeDecision()}, executor, recorder)

	result := balancer.Rebalance(context.Background())

	require.Equal(t, domain.StatusExecuted, result.Status)
	require.Equal(t, 2, result.TotalCount)
	require.Equal(t, 2, result.SuccessCount)
	require.True(t, result.Succeeded())

	// 47.5% of 10000 at price 10, lot size 1
	require.Len(t, executor.submitted, 2)
	for _, op := range executor.submitted {
		require.Equal(t, domain.DirectionBuy, op.Direction)
		require.Equal(t, int64(475), op.Lots)
	}
	require.Equal(t, "TMOS", executor.submitted[0].Ticker, "equal deltas break ties by ticker")
	require.Equal(t, "TRUR", executor.submitted[1].Ticker)

	require.Len(t, recorder.saved, 1)
	require.Equal(t, domain.StatusExecuted, recorder.saved[0].Status)
	require.Equal(t, StateIdle, balancer.State())
}

func TestRebalance_AlreadyBalanced(t *testing.T) {
	executor := &recordingExecutor{}
	balancer := testFixture(&stubAdvisor{decision: tradeDecision()}, executor, nil)
	balancer.broker = &stubBroker{wallet: domain.Wallet{
		{Ticker: "TMOS", Figi: "F_TMOS", LotSize: 1, Price: price("10"), Quantity: 475},
		{Ticker: "TRUR", Figi: "F_TRUR", LotSize: 1, Price: price("10"), Quantity: 475},
		domain.NewCashPosition(500),
	}}

	result := balancer.Rebalance(context.Background())

	require.Equal(t, domain.StatusBalanced, result.Status)
	require.Empty(t, executor.submitted)
	require.True(t, result.Succeeded())
}

func TestRebalance_RejectsConcurrentCycle(t *testing.T) {
	balancer := testFixture(&stubAdvisor{decision: tradeDecision()}, &recordingExecutor{}, nil)
	balancer.state.Store(int32(StateExecuting))

	result := balancer.Rebalance(context.Background())

	require.Equal(t, domain.StatusRejected, result.Status)
	require.Empty(t, balancer.History(), "rejections are not recorded")
	require.Equal(t, StateExecuting, balancer.State(), "a rejection must not touch the running cycle's state")
}

func TestRebalance_AbortsWithoutMarketData(t *testing.T) {
	executor := &recordingExecutor{}
	balancer := testFixture(&stubAdvisor{decision: tradeDecision()}, executor, nil)
	balancer.market = &stubMarket{} // every price lookup fails

	result := balancer.Rebalance(context.Background())

	require.Equal(t, domain.StatusAborted, result.Status)
	require.Empty(t, executor.submitted, "no partial rebalance on missing market data")
}

func TestRebalance_AbortsWhenTimingSaysWait(t *testing.T) {
	broker := &stubBroker{err: errors.New("must not be called")}
	balancer := testFixture(&stubAdvisor{decision: waitDecision()}, &recordingExecutor{}, nil)
	balancer.broker = broker

	result := balancer.Rebalance(context.Background())

	require.Equal(t, domain.StatusAborted, result.Status)
	require.Equal(t, "current hour is not quiet", result.Reason)
}

func TestRebalance_FailsClosedOnTimingError(t *testing.T) {
	balancer := testFixture(&stubAdvisor{err: errors.New("candle service down")}, &recordingExecutor{}, nil)

	result := balancer.Rebalance(context.Background())

	require.Equal(t, domain.StatusAborted, result.Status)
	require.Contains(t, result.Reason, "timing analysis failed")
	require.False(t, balancer.IsGoodTimeToTrade(context.Background(), []string{"TMOS"}))
}

func TestRebalance_PartialExecutionFailure(t *testing.T) {
	executor := &recordingExecutor{failTickers: map[string]bool{"TRUR": true}}
	balancer := testFixture(&stubAdvisor{decision: tradeDecision()}, executor, nil)

	result := balancer.Rebalance(context.Background())

	require.Equal(t, domain.StatusExecuted, result.Status)
	require.Equal(t, 2, result.TotalCount)
	require.Equal(t, 1, result.SuccessCount)
	require.False(t, result.Succeeded())
	require.Len(t, executor.submitted, 2, "one failed order must not abort the batch")

	var failed *domain.OperationResult
	for i := range result.Results {
		if !result.Results[i].Success {
			failed = &result.Results[i]
		}
	}
	require.NotNil(t, failed)
	require.Equal(t, "TRUR", failed.Operation.Ticker)
	require.Contains(t, failed.Error, "order rejected")
}

func TestRebalance_HistoryRingIsBounded(t *testing.T) {
	balancer := testFixture(&stubAdvisor{decision: waitDecision()}, &recordingExecutor{}, nil)
	balancer.cfg.HistoryLimit = 3

	for i := 0; i < 5; i++ {
		balancer.Rebalance(context.Background())
	}

	history := balancer.History()
	require.Len(t, history, 3)

	last := balancer.GetLastResult()
	require.NotNil(t, last)
	require.Equal(t, domain.StatusAborted, last.Status)
}

func TestSuccessRate(t *testing.T) {
	balancer := testFixture(&stubAdvisor{decision: tradeDecision()}, &recordingExecutor{}, nil)
	require.True(t, balancer.SuccessRate().IsZero())

	balancer.record(domain.RebalanceResult{Status: domain.StatusBalanced})
	balancer.record(domain.RebalanceResult{Status: domain.StatusAborted})

	require.True(t, balancer.SuccessRate().Equal(decimal.NewFromInt(50)))
}
