// Package trader turns planned rebalance operations into broker orders.
package trader

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

// OrderPoster submits a single market order to the broker.
type OrderPoster interface {
	PostMarketOrder(ctx context.Context, figi string, direction domain.Direction, lots int64, orderID string) (string, error)
}

// TinkoffTrader executes operations against the Tinkoff orders service. In
// dry-run mode orders are logged but never sent, which is the default mode so
// a fresh deployment cannot trade by accident.
type TinkoffTrader struct {
	poster OrderPoster
	dryRun bool
	logger *zap.Logger
}

// NewTinkoffTrader creates an order executor.
func NewTinkoffTrader(poster OrderPoster, dryRun bool, logger *zap.Logger) *TinkoffTrader {
	return &TinkoffTrader{poster: poster, dryRun: dryRun, logger: logger}
}

// DryRun reports whether the trader is in dry-run mode.
func (t *TinkoffTrader) DryRun() bool {
	return t.dryRun
}

// SubmitOrder posts one market order for the operation. Every order carries a
// fresh idempotency key so a retried submission cannot double-execute.
func (t *TinkoffTrader) SubmitOrder(ctx context.Context, op domain.RebalanceOperation) error {
	if op.Lots <= 0 {
		return errors.Errorf("operation for %s has no lots to trade", op.Ticker)
	}
	if op.Direction != domain.DirectionBuy && op.Direction != domain.DirectionSell {
		return errors.Errorf("operation for %s has no direction", op.Ticker)
	}

	if t.dryRun {
		t.logger.Info("dry run, order not sent",
			zap.String("ticker", op.Ticker),
			zap.String("direction", op.Direction.String()),
			zap.Int64("lots", op.Lots))
		return nil
	}

	orderID := uuid.NewString()
	brokerOrderID, err := t.poster.PostMarketOrder(ctx, op.Figi, op.Direction, op.Lots, orderID)
	if err != nil {
		return errors.Wrapf(err, "failed to execute %s for %s", op.Direction, op.Ticker)
	}

	t.logger.Info("order executed",
		zap.String("ticker", op.Ticker),
		zap.String("direction", op.Direction.String()),
		zap.Int64("lots", op.Lots),
		zap.String("order_id", brokerOrderID))
	return nil
}
