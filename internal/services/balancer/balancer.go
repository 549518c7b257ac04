// Package balancer orchestrates one full rebalance cycle: timing check,
// wallet snapshot, weight derivation, planning, sequencing and sequential
// execution of the resulting operations.
package balancer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suenot/etf-monitor/internal/domain"
	"github.com/suenot/etf-monitor/internal/services/allocator"
	"github.com/suenot/etf-monitor/internal/services/planner"
)

const (
	defaultHistoryLimit  = 100
	defaultPriceFetchers = 4
)

// Broker provides the current holdings snapshot.
type Broker interface {
	GetCurrentWallet(ctx context.Context) (domain.Wallet, error)
}

// InstrumentSource provides instrument metadata and the ETF catalog.
type InstrumentSource interface {
	GetInstrumentMeta(ctx context.Context, ticker string) (domain.InstrumentMeta, error)
	ListEtfs(ctx context.Context) ([]domain.EtfInfo, error)
}

// MarketData provides last prices.
type MarketData interface {
	GetLastPrice(ctx context.Context, figi string) (decimal.Decimal, error)
}

// OrderExecutor submits one planned operation. It owns dry-run behavior and
// per-order timeouts.
type OrderExecutor interface {
	SubmitOrder(ctx context.Context, op domain.RebalanceOperation) error
}

// TimingAdvisor answers the trade-now-or-wait question.
type TimingAdvisor interface {
	Decide(ctx context.Context, referenceTickers []string) (domain.TimingDecision, error)
}

// ResultRecorder receives every finished cycle result. Optional.
type ResultRecorder interface {
	Save(result domain.RebalanceResult) error
}

// Config holds the per-cycle policy knobs.
type Config struct {
	// Basket is the fixed list of eligible tickers.
	Basket              []string
	CashReservePercent  decimal.Decimal
	MaxDeviationPercent decimal.Decimal
	MinOrderValue       decimal.Decimal
	// SleepBetweenOrders is the fixed inter-order delay during execution.
	SleepBetweenOrders time.Duration
	HistoryLimit       int
	// DryRun tags recorded results when the executor only simulates orders.
	DryRun bool
}

// State of the rebalance cycle state machine.
type State int32

const (
	StateIdle State = iota
	StateTimingCheck
	StateWaitingForWindow
	StatePlanningCycle
	StateExecuting
	StateRecording
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTimingCheck:
		return "timing_check"
	case StateWaitingForWindow:
		return "waiting_for_window"
	case StatePlanningCycle:
		return "planning_cycle"
	case StateExecuting:
		return "executing"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

// Balancer runs rebalance cycles one at a time. The single-flight state is
// the only shared mutable state; everything else is local to one cycle.
type Balancer struct {
	broker      Broker
	instruments InstrumentSource
	market      MarketData
	executor    OrderExecutor
	advisor     TimingAdvisor
	recorder    ResultRecorder
	cfg         Config
	logger      *zap.Logger

	state atomic.Int32

	mu         sync.Mutex
	lastResult *domain.RebalanceResult
	history    []domain.RebalanceResult
}

// New creates a rebalance orchestrator. The recorder may be nil.
func New(broker Broker, instruments InstrumentSource, market MarketData,
	executor OrderExecutor, advisor TimingAdvisor, recorder ResultRecorder,
	cfg Config, logger *zap.Logger) *Balancer {

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Balancer{
		broker:      broker,
		instruments: instruments,
		market:      market,
		executor:    executor,
		advisor:     advisor,
		recorder:    recorder,
		cfg:         cfg,
		logger:      logger,
	}
}

// State returns the current cycle state.
func (b *Balancer) State() State {
	return State(b.state.Load())
}

// GetLastResult returns the most recent recorded cycle result, or nil.
func (b *Balancer) GetLastResult() *domain.RebalanceResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastResult == nil {
		return nil
	}
	result := *b.lastResult
	return &result
}

// History returns the bounded cycle history, oldest first.
func (b *Balancer) History() []domain.RebalanceResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	history := make([]domain.RebalanceResult, len(b.history))
	copy(history, b.history)
	return history
}

// IsGoodTimeToTrade reports whether the timing gate currently allows trading.
// An analysis failure means no: the gate fails closed.
func (b *Balancer) IsGoodTimeToTrade(ctx context.Context, referenceTickers []string) bool {
	decision, err := b.advisor.Decide(ctx, referenceTickers)
	if err != nil {
		b.logger.Warn("timing analysis failed, treating as bad time to trade", zap.Error(err))
		return false
	}
	return decision.Action == domain.TimingActionTrade
}

// Rebalance runs one full cycle and returns its structured result. All
// failure paths come back as a tagged result; no error escapes. A cycle
// started while another is in flight is rejected immediately, without
// queuing, and the rejection is not recorded in history.
func (b *Balancer) Rebalance(ctx context.Context) domain.RebalanceResult {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateTimingCheck)) {
		b.logger.Info("rebalance already running, rejecting",
			zap.String("state", b.State().String()))
		return domain.RebalanceResult{
			Timestamp: time.Now(),
			Status:    domain.StatusRejected,
			Reason:    "rebalance already running",
		}
	}
	defer b.state.Store(int32(StateIdle))

	b.logger.Info("rebalance cycle started")

	decision, err := b.advisor.Decide(ctx, b.cfg.Basket)
	if err != nil {
		// fail closed: a broken analysis must never open the gate
		b.state.Store(int32(StateWaitingForWindow))
		return b.record(domain.RebalanceResult{
			Timestamp: time.Now(),
			Status:    domain.StatusAborted,
			Reason:    fmt.Sprintf("timing analysis failed: %v", err),
		})
	}
	if decision.Action != domain.TimingActionTrade {
		b.state.Store(int32(StateWaitingForWindow))
		b.logger.Info("not a good time to trade, postponing rebalance",
			zap.String("reason", decision.Reason),
			zap.Duration("recheck_in", decision.RecheckIn))
		return b.record(domain.RebalanceResult{
			Timestamp: time.Now(),
			Status:    domain.StatusAborted,
			Reason:    decision.Reason,
		})
	}
	b.logger.Info("timing gate open",
		zap.String("confidence", decision.Confidence),
		zap.String("reason", decision.Reason))

	b.state.Store(int32(StatePlanningCycle))
	operations, remainder, err := b.plan(ctx)
	if err != nil {
		// aggregate-fatal: no partial rebalance, retry on the next trigger
		return b.record(domain.RebalanceResult{
			Timestamp: time.Now(),
			Status:    domain.StatusAborted,
			Reason:    err.Error(),
		})
	}
	if len(operations) == 0 {
		b.logger.Info("portfolio already balanced, no operations required")
		return b.record(domain.RebalanceResult{
			Timestamp:           time.Now(),
			Status:              domain.StatusBalanced,
			Reason:              "portfolio within thresholds",
			UninvestedRemainder: remainder,
		})
	}

	b.state.Store(int32(StateExecuting))
	results := b.execute(ctx, operations)

	b.state.Store(int32(StateRecording))
	successCount := 0
	for i := range results {
		if results[i].Success {
			successCount++
		}
	}
	result := domain.RebalanceResult{
		Timestamp:           time.Now(),
		Status:              domain.StatusExecuted,
		Operations:          operations,
		Results:             results,
		SuccessCount:        successCount,
		TotalCount:          len(operations),
		UninvestedRemainder: remainder,
	}
	if successCount < len(operations) {
		result.Reason = fmt.Sprintf("%d of %d operations failed", len(operations)-successCount, len(operations))
	}

	b.logger.Info("rebalance cycle finished",
		zap.Int("success", successCount),
		zap.Int("total", len(operations)),
		zap.String("uninvested_remainder", result.UninvestedRemainder.StringFixed(2)))

	return b.record(result)
}

// plan snapshots the wallet, derives target weights and produces the
// sequenced operation list. Returned errors are aggregate-fatal.
func (b *Balancer) plan(ctx context.Context) ([]domain.RebalanceOperation, decimal.Decimal, error) {
	wallet, err := b.broker.GetCurrentWallet(ctx)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "snapshot wallet")
	}
	b.logger.Info("wallet snapshot taken",
		zap.Int("positions", len(wallet)),
		zap.String("total_value", wallet.TotalValue().StringFixed(2)))

	basket, err := b.basketEtfs(ctx)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "load instrument catalog")
	}

	catalog := make(domain.InstrumentCatalog, len(basket))
	for _, etf := range basket {
		catalog[etf.Ticker] = domain.InstrumentMeta{Ticker: etf.Ticker, Figi: etf.Figi, LotSize: etf.LotSize}
	}
	// wallet positions may hold instruments outside the basket; the planner
	// needs their metadata to sell them off
	for i := range wallet {
		pos := &wallet[i]
		if pos.IsCash() {
			continue
		}
		if _, ok := catalog[pos.Ticker]; !ok {
			catalog[pos.Ticker] = domain.InstrumentMeta{Ticker: pos.Ticker, Figi: pos.Figi, LotSize: pos.LotSize}
		}
	}

	prices := b.collectPrices(ctx, basket)

	entries := make([]allocator.MarketCapEntry, 0, len(basket))
	for _, etf := range basket {
		lastPrice := prices[etf.Figi] // zero when unavailable
		entries = append(entries, allocator.MarketCapEntry{
			Ticker:            etf.Ticker,
			LastPrice:         lastPrice,
			SharesOutstanding: etf.SharesOutstanding,
		})
	}

	desired, err := allocator.MarketCapWeights(entries, b.cfg.CashReservePercent, b.logger)
	if err != nil {
		return nil, decimal.Zero, err
	}
	normalized, err := allocator.Normalize(desired, wallet)
	if err != nil {
		return nil, decimal.Zero, err
	}

	plan := planner.BuildPlan(wallet, normalized, catalog, prices, planner.Thresholds{
		MaxDeviationPercent: b.cfg.MaxDeviationPercent,
		MinOrderValue:       b.cfg.MinOrderValue,
	}, b.logger)

	return planner.Sequence(plan.Operations), plan.UninvestedRemainder, nil
}

func (b *Balancer) basketEtfs(ctx context.Context) ([]domain.EtfInfo, error) {
	etfs, err := b.instruments.ListEtfs(ctx)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(b.cfg.Basket))
	for _, ticker := range b.cfg.Basket {
		wanted[ticker] = struct{}{}
	}

	basket := make([]domain.EtfInfo, 0, len(wanted))
	for _, etf := range etfs {
		if _, ok := wanted[etf.Ticker]; ok {
			basket = append(basket, etf)
		}
	}
	if len(basket) < len(wanted) {
		b.logger.Warn("some basket tickers are missing from the broker catalog",
			zap.Int("configured", len(wanted)), zap.Int("found", len(basket)))
	}
	return basket, nil
}

// collectPrices fetches last prices in a bounded concurrent batch. All
// fetches complete before the snapshot is returned, so aggregate totals never
// see a partial basket. A single missing price is a warning, not a failure.
func (b *Balancer) collectPrices(ctx context.Context, basket []domain.EtfInfo) domain.PriceSnapshot {
	prices := make(domain.PriceSnapshot, len(basket))
	var pricesMu sync.Mutex

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(defaultPriceFetchers)

	for _, etf := range basket {
		etf := etf
		g.Go(func() error {
			price, err := b.market.GetLastPrice(groupCtx, etf.Figi)
			if err != nil {
				b.logger.Warn("failed to fetch last price",
					zap.String("ticker", etf.Ticker), zap.Error(err))
				return nil
			}
			pricesMu.Lock()
			prices[etf.Figi] = price
			pricesMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return prices
}

// execute runs the sequenced operations strictly one after another. One
// failed order never aborts the remaining batch, and the sequence runs to
// completion even if the surrounding context is cancelled: an in-flight cycle
// is not preemptible.
func (b *Balancer) execute(ctx context.Context, operations []domain.RebalanceOperation) []domain.OperationResult {
	results := make([]domain.OperationResult, 0, len(operations))

	for i := range operations {
		op := operations[i]
		err := b.executor.SubmitOrder(ctx, op)
		if err != nil {
			b.logger.Error("operation failed",
				zap.String("operation", op.String()), zap.Error(err))
			results = append(results, domain.OperationResult{Operation: op, DryRun: b.cfg.DryRun, Error: err.Error()})
		} else {
			b.logger.Info("operation executed", zap.String("operation", op.String()))
			results = append(results, domain.OperationResult{Operation: op, Success: true, DryRun: b.cfg.DryRun})
		}

		if i < len(operations)-1 && b.cfg.SleepBetweenOrders > 0 {
			time.Sleep(b.cfg.SleepBetweenOrders)
		}
	}

	return results
}

// record stores the result as the latest, appends it to the bounded history
// ring and forwards it to the recorder.
func (b *Balancer) record(result domain.RebalanceResult) domain.RebalanceResult {
	b.mu.Lock()
	resultCopy := result
	b.lastResult = &resultCopy
	b.history = append(b.history, result)
	if len(b.history) > b.cfg.HistoryLimit {
		b.history = b.history[len(b.history)-b.cfg.HistoryLimit:]
	}
	b.mu.Unlock()

	if b.recorder != nil {
		if err := b.recorder.Save(result); err != nil {
			b.logger.Warn("failed to persist rebalance result", zap.Error(err))
		}
	}
	return result
}

// SuccessRate returns the share of fully successful cycles in the recorded
// history, in percent.
func (b *Balancer) SuccessRate() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.history) == 0 {
		return decimal.Zero
	}
	succeeded := 0
	for i := range b.history {
		if b.history[i].Succeeded() {
			succeeded++
		}
	}
	return decimal.NewFromInt(int64(succeeded)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(len(b.history))))
}
